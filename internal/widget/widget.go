package widget

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/weather-widget/internal/scheduler"
	"github.com/i474232898/weather-widget/internal/weather"
)

const (
	MsgNotFound    = "Location not found"
	MsgUnavailable = "Unable to load weather"
)

// UserMessage maps an error to the text shown in place of the condition.
func UserMessage(err error) string {
	switch weather.KindOf(err) {
	case weather.KindNone:
		return ""
	case weather.KindNotFound:
		return MsgNotFound
	default:
		return MsgUnavailable
	}
}

// Refresher drives periodic refreshes of the selected coordinates.
type Refresher interface {
	Select(c weather.Coordinates) error
	Clear()
	Stop()
}

// Selection is the location a widget currently displays.
type Selection struct {
	ID          string              `json:"id"`
	Label       string              `json:"label"`
	Coordinates weather.Coordinates `json:"coordinates"`
	SelectedAt  time.Time           `json:"selectedAt"`
}

// View is the display-ready state of a widget.
type View struct {
	Location      string       `json:"location"`
	Temperature   string       `json:"temperature"`
	Unit          weather.Unit `json:"unit"`
	Condition     string       `json:"condition"`
	Category      string       `json:"category"`
	Error         string       `json:"error,omitempty"`
	Loading       bool         `json:"loading"`
	TimezoneLabel string       `json:"timezoneLabel"`
	UpdatedAt     *time.Time   `json:"updatedAt,omitempty"`
}

// Widget ties one selection to a geocoder, a weather service and a
// refresher for the lifetime of a single display.
type Widget struct {
	geocoder  *weather.Geocoder
	service   *weather.Service
	refresher Refresher

	mu        sync.RWMutex
	selection *Selection
	closed    bool
}

// New creates a Widget. The widget owns refresher and stops it on Close.
func New(geocoder *weather.Geocoder, service *weather.Service, refresher Refresher) *Widget {
	return &Widget{
		geocoder:  geocoder,
		service:   service,
		refresher: refresher,
	}
}

// NewWithScheduler wires a gocron-backed refresher around service.
func NewWithScheduler(geocoder *weather.Geocoder, service *weather.Service, interval time.Duration, opts ...scheduler.Option) *Widget {
	return New(geocoder, service, scheduler.New(service, interval, opts...))
}

// Service exposes the underlying weather service.
func (w *Widget) Service() *weather.Service {
	return w.service
}

// Geocoder exposes the underlying geocoder.
func (w *Widget) Geocoder() *weather.Geocoder {
	return w.geocoder
}

// SelectQuery geocodes q and selects the result. On failure the current
// selection is kept and the state carries a user-facing message.
func (w *Widget) SelectQuery(ctx context.Context, q string) (Selection, error) {
	res, err := w.geocoder.Geocode(ctx, q)
	if err != nil {
		log.Printf("ERROR: select %q: %v", q, err)
		w.service.SetError(UserMessage(err))
		return Selection{}, err
	}
	return w.SelectCoordinates(res.DisplayName, res.Coordinates())
}

// SelectCoordinates selects c under label and starts refreshing it.
func (w *Widget) SelectCoordinates(label string, c weather.Coordinates) (Selection, error) {
	if !c.Valid() {
		return Selection{}, fmt.Errorf("%w: coordinates must be finite", weather.ErrValidation)
	}
	label = strings.TrimSpace(label)
	if label == "" {
		label = c.Key()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return Selection{}, scheduler.ErrStopped
	}

	sel := Selection{
		ID:          uuid.NewString(),
		Label:       label,
		Coordinates: c,
		SelectedAt:  time.Now().UTC(),
	}
	if err := w.refresher.Select(c); err != nil {
		return Selection{}, err
	}
	w.selection = &sel

	log.Printf("INFO: selected %s (%s)", sel.Label, c.Key())
	return sel, nil
}

// Selection returns the current selection, if any.
func (w *Widget) Selection() (Selection, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.selection == nil {
		return Selection{}, false
	}
	return *w.selection, true
}

// ClearSelection stops refreshing without closing the widget.
func (w *Widget) ClearSelection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.selection = nil
	w.refresher.Clear()
}

// View renders the current state in unit.
func (w *Widget) View(unit weather.Unit) View {
	st := w.service.State()

	v := View{
		Unit:          unit,
		Temperature:   "--°" + string(unit),
		Loading:       st.Loading,
		TimezoneLabel: st.TimezoneLabel,
	}
	if sel, ok := w.Selection(); ok {
		v.Location = sel.Label
	}

	if st.Error != "" {
		v.Error = displayError(st)
		v.Category = string(weather.ConditionUnknown)
	}
	// A failed fetch leaves no data; a failed selection keeps the last reading.
	if st.Data == nil {
		return v
	}

	v.Temperature = fmt.Sprintf("%d°%s", weather.Display(st.Data.TemperatureF, unit), unit)
	if v.Error == "" {
		v.Condition = st.Data.Condition
		v.Category = string(st.Data.Category)
	}
	if v.Location == "" {
		v.Location = st.Data.Location
	}
	at := st.Data.FetchedAt
	v.UpdatedAt = &at
	return v
}

// displayError prefers the structured error; messages set directly through
// SetError are shown as-is.
func displayError(st weather.State) string {
	if st.Err != nil {
		return UserMessage(st.Err)
	}
	return st.Error
}

// Close stops refreshing. The widget cannot be reused afterwards.
func (w *Widget) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	w.selection = nil
	w.refresher.Stop()
}
