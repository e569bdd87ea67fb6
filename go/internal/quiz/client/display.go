package client

import (
	"context"
	"io"
	"sync"

	"github.com/mcdev12/smashquiz/go/internal/models"
	"github.com/mcdev12/smashquiz/go/internal/quiz/engine"
	"github.com/mcdev12/smashquiz/go/internal/quiz/view"
	"github.com/rs/zerolog/log"
)

// Display is the read-only scoreboard. It never issues commands other than
// Sync.
type Display struct {
	engine *engine.Engine

	mu   sync.RWMutex
	ui   models.UIConfig
	onUI func(models.UIConfig)
}

func NewDisplay(e *engine.Engine) *Display {
	return &Display{
		engine: e,
		ui:     models.UIConfig{FontSize: models.DefaultFontSize},
	}
}

// HandleMessage is the subscriber callback. UI hints carry no team data and
// are kept out of the engine.
func (d *Display) HandleMessage(ctx context.Context, msg models.Message) {
	if msg.Event.UI != nil {
		d.mu.Lock()
		d.ui = msg.Event.UI.Clamp()
		ui, onUI := d.ui, d.onUI
		d.mu.Unlock()
		log.Debug().Int("font_size", ui.FontSize).Msg("display ui updated")
		if onUI != nil {
			onUI(ui)
		}
		return
	}
	if _, err := d.engine.Handle(ctx, msg); err != nil {
		log.Warn().Err(err).Msg("display resync failed")
	}
}

// Bootstrap pulls a fresh snapshot. Before a game exists it fails and the
// display keeps showing the placeholder.
func (d *Display) Bootstrap(ctx context.Context) error {
	_, err := d.engine.Sync(ctx)
	return err
}

// OnUIUpdate registers fn to run after every UI hint.
func (d *Display) OnUIUpdate(fn func(models.UIConfig)) {
	d.mu.Lock()
	d.onUI = fn
	d.mu.Unlock()
}

func (d *Display) UI() models.UIConfig {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.ui
}

func (d *Display) Board() view.Board {
	return view.Build(d.engine.Snapshot())
}

func (d *Display) Render(w io.Writer) error {
	return view.Render(w, d.Board())
}

// Subscriber returns a subscriber wired to this display.
func (d *Display) Subscriber(url string, opts ...SubscriberOption) *Subscriber {
	opts = append([]SubscriberOption{WithBootstrap(d.Bootstrap)}, opts...)
	return NewSubscriber(url, d.HandleMessage, opts...)
}
