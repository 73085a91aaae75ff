package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"camera-inspection-backend/config"
	"camera-inspection-backend/internal/capture"
	"camera-inspection-backend/internal/model"
	"camera-inspection-backend/internal/parse"
)

var (
	ErrWrongState       = errors.New("operation not allowed in current session state")
	ErrEmptyValue       = errors.New("value must not be empty")
	ErrFieldsIncomplete = errors.New("form fields do not match their expected lengths")
	ErrNoFrame          = capture.ErrNoFrame
	ErrNoSnapshot       = errors.New("no captured snapshot awaiting a decision")
	ErrUnknownField     = errors.New("unknown field")
	ErrUnknownDecision  = errors.New("unknown decision")
	ErrPersist          = errors.New("inspection record could not be saved")
)

// Feed is the subset of the device link the session drives.
type Feed interface {
	Start() error
	Pause()
	Resume()
}

// Recorder persists confirmed inspection records.
type Recorder interface {
	Insert(ctx context.Context, rec *model.InspectionRecord) error
}

// Observer is notified after a record has been saved.
type Observer interface {
	RecordSaved(rec model.InspectionRecord)
}

// Session is the single operator workflow of a station.
type Session struct {
	mu sync.Mutex

	lengths   config.FieldsConfig
	feed      Feed
	camera    capture.Camera
	encoder   capture.Encoder
	recorder  Recorder
	observers []Observer
	now       func() time.Time
	cameraErr error
	feedErr   error
	suspended bool

	state      State
	id         string
	startedAt  time.Time
	employeeID string
	workOrder  string
	values     [fieldCount]string
	snapshot   *Snapshot
}

// New creates a session waiting for an employee ID.
func New(fields config.FieldsConfig, feed Feed, camera capture.Camera, encoder capture.Encoder, recorder Recorder) *Session {
	return &Session{
		lengths:  fields,
		feed:     feed,
		camera:   camera,
		encoder:  encoder,
		recorder: recorder,
		now:      time.Now,
		state:    StateAwaitingEmployee,
	}
}

// SetClock replaces the time source used for session starts and record timestamps.
func (s *Session) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// AddObserver registers o for saved-record notifications.
func (s *Session) AddObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// State returns the current state, with READY_TO_CAPTURE derived from the form.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	if s.state == StateCollectingFields && s.readyLocked() && s.frameAvailable() {
		return StateReadyToCapture
	}
	return s.state
}

func (s *Session) frameAvailable() bool {
	_, ok := s.camera.CurrentFrame()
	return ok
}

// EnterEmployee records the operator and opens a new session.
func (s *Session) EnterEmployee(id string) error {
	id = parse.CleanText(id)
	if id == "" {
		return fmt.Errorf("employee id: %w", ErrEmptyValue)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAwaitingEmployee {
		return fmt.Errorf("%w: employee id expected in %s, session is %s", ErrWrongState, StateAwaitingEmployee, s.stateLocked())
	}

	s.employeeID = id
	s.id = uuid.NewString()
	s.startedAt = s.now()
	s.state = StateAwaitingWorkOrder
	log.Printf("Session %s opened for employee %s", s.id, id)
	return nil
}

// EnterWorkOrder records the work order, starts the camera and lets the
// device link deliver readings.
func (s *Session) EnterWorkOrder(workOrder string) error {
	workOrder = parse.CleanText(workOrder)
	if workOrder == "" {
		return fmt.Errorf("work order: %w", ErrEmptyValue)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAwaitingWorkOrder {
		return fmt.Errorf("%w: work order expected in %s, session is %s", ErrWrongState, StateAwaitingWorkOrder, s.stateLocked())
	}

	s.workOrder = workOrder
	s.state = StateCollectingFields

	s.cameraErr = s.camera.Start()
	if s.cameraErr != nil {
		log.Printf("Session %s: camera unavailable: %v", s.id, s.cameraErr)
	}
	s.feedErr = s.feed.Start()
	if s.feedErr != nil {
		log.Printf("Session %s: device link unavailable: %v", s.id, s.feedErr)
	}
	if !s.suspended {
		s.feed.Resume()
	}
	return nil
}

// SetField stores an operator edit of a device field and returns its
// validity. Whitespace is stripped first so the stored value is the one that
// gets persisted.
func (s *Session) SetField(f Field, value string) (Validity, error) {
	if f < 0 || f >= fieldCount {
		return Neutral, fmt.Errorf("%w: %d", ErrUnknownField, int(f))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCollectingFields {
		return Neutral, fmt.Errorf("%w: fields are editable in %s, session is %s", ErrWrongState, StateCollectingFields, s.stateLocked())
	}

	value = parse.CleanText(value)
	s.values[f] = value
	return ValidityOf(value, s.lengths.Length(f.Key())), nil
}

// ApplyDeviceMessage fills the four device fields from msg. Readings that
// arrive outside COLLECTING_FIELDS are ignored.
func (s *Session) ApplyDeviceMessage(msg parse.DeviceMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCollectingFields {
		log.Printf("Ignoring device reading in state %s", s.stateLocked())
		return false
	}

	s.values[FieldChargeNo] = msg.ChargeNo
	s.values[FieldUniqueNo] = msg.UniqueNo
	s.values[FieldSerialNo] = msg.SerialNo
	s.values[FieldVendorCode] = msg.VendorCode
	return true
}

// Ready reports whether every form field matches its expected length and a
// camera frame is available.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked() == StateReadyToCapture
}

func (s *Session) readyLocked() bool {
	if len(s.employeeID) != s.lengths.Length(config.FieldEmployeeID) {
		return false
	}
	if len(s.workOrder) != s.lengths.Length(config.FieldWorkOrder) {
		return false
	}
	for _, f := range Fields {
		if ValidityOf(s.values[f], s.lengths.Length(f.Key())) != Valid {
			return false
		}
	}
	return true
}

// Capture freezes the form and the current camera frame and pauses the
// device link until the operator decides.
func (s *Session) Capture() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCollectingFields {
		return Snapshot{}, fmt.Errorf("%w: capture requires %s, session is %s", ErrWrongState, StateReadyToCapture, s.stateLocked())
	}
	if !s.readyLocked() {
		return Snapshot{}, ErrFieldsIncomplete
	}

	frame, ok := s.camera.CurrentFrame()
	if !ok {
		return Snapshot{}, ErrNoFrame
	}
	data, err := s.encoder.Encode(frame)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to encode frame: %w", err)
	}

	snap := Snapshot{
		SessionID:  s.id,
		EmployeeID: s.employeeID,
		WorkOrder:  s.workOrder,
		ChargeNo:   s.values[FieldChargeNo],
		UniqueNo:   s.values[FieldUniqueNo],
		SerialNo:   s.values[FieldSerialNo],
		VendorCode: s.values[FieldVendorCode],
		Image:      data,
		CapturedAt: s.now(),
	}
	s.snapshot = &snap
	s.state = StateConfirming
	s.feed.Pause()
	return snap, nil
}

// Confirm persists the pending snapshot with the operator's decision. On
// failure the session stays in CONFIRMING so the decision can be retried.
func (s *Session) Confirm(ctx context.Context, decision Decision) (model.InspectionRecord, error) {
	s.mu.Lock()
	if s.state != StateConfirming || s.snapshot == nil {
		s.mu.Unlock()
		return model.InspectionRecord{}, ErrNoSnapshot
	}

	rec := BuildRecord(*s.snapshot, decision, s.now())
	if err := s.recorder.Insert(ctx, &rec); err != nil {
		log.Printf("Session %s: failed to save inspection: %v", s.id, err)
		s.mu.Unlock()
		return model.InspectionRecord{}, fmt.Errorf("%w: %w", ErrPersist, err)
	}

	s.snapshot = nil
	s.values = [fieldCount]string{}
	s.state = StateCollectingFields
	if !s.suspended {
		s.feed.Resume()
	}
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	log.Printf("Session %s: saved inspection %d (%s)", rec.SessionID, rec.ID, rec.Status)
	for _, o := range observers {
		o.RecordSaved(rec)
	}
	return rec, nil
}

// NewUser abandons any pending snapshot and returns to AWAITING_EMPLOYEE.
func (s *Session) NewUser() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snapshot != nil {
		log.Printf("Session %s: discarding unconfirmed capture", s.id)
	}
	s.camera.Stop()
	s.feed.Pause()

	s.snapshot = nil
	s.values = [fieldCount]string{}
	s.employeeID = ""
	s.workOrder = ""
	s.id = ""
	s.startedAt = time.Time{}
	s.cameraErr = nil
	s.feedErr = nil
	s.state = StateAwaitingEmployee
}

// Suspend pauses the device link while the operator is away from the form.
func (s *Session) Suspend() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspended = true
	s.feed.Pause()
}

// Reattach resumes the device link if the form is collecting fields.
func (s *Session) Reattach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspended = false
	if s.state == StateCollectingFields {
		s.feed.Resume()
	}
}

// SnapshotImage returns the encoded frame awaiting a decision.
func (s *Session) SnapshotImage() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return nil, false
	}
	return s.snapshot.Image, true
}

// FieldView is one form field as presented to the operator.
type FieldView struct {
	Name     string   `json:"name"`
	Value    string   `json:"value"`
	Expected int      `json:"expectedLength"`
	Validity Validity `json:"validity"`
}

// View is a point-in-time rendering of the session.
type View struct {
	State       string      `json:"state"`
	SessionID   string      `json:"sessionId,omitempty"`
	StartedAt   *time.Time  `json:"startedAt,omitempty"`
	EmployeeID  FieldView   `json:"employeeId"`
	WorkOrder   FieldView   `json:"workOrder"`
	Fields      []FieldView `json:"fields"`
	Ready       bool        `json:"ready"`
	Camera      bool        `json:"cameraAvailable"`
	Pending     bool        `json:"pendingConfirmation"`
	Suspended   bool        `json:"suspended"`
	CameraError string      `json:"cameraError,omitempty"`
	DeviceError string      `json:"deviceError,omitempty"`
}

// View renders the current session.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		State:      s.stateLocked().String(),
		SessionID:  s.id,
		EmployeeID: s.fieldView(config.FieldEmployeeID, s.employeeID),
		WorkOrder:  s.fieldView(config.FieldWorkOrder, s.workOrder),
		Ready:      s.stateLocked() == StateReadyToCapture,
		Camera:     s.state != StateAwaitingEmployee && s.state != StateAwaitingWorkOrder && s.frameAvailable(),
		Pending:    s.snapshot != nil,
		Suspended:  s.suspended,
	}
	if !s.startedAt.IsZero() {
		started := s.startedAt
		v.StartedAt = &started
	}
	for _, f := range Fields {
		v.Fields = append(v.Fields, s.fieldView(f.Key(), s.values[f]))
	}
	if s.cameraErr != nil {
		v.CameraError = s.cameraErr.Error()
	} else if s.state != StateAwaitingEmployee && s.state != StateAwaitingWorkOrder {
		v.CameraError = s.camera.Status().LastError
	}
	if s.feedErr != nil {
		v.DeviceError = s.feedErr.Error()
	}
	return v
}

func (s *Session) fieldView(name, value string) FieldView {
	expected := s.lengths.Length(name)
	return FieldView{
		Name:     name,
		Value:    value,
		Expected: expected,
		Validity: ValidityOf(value, expected),
	}
}

// Run applies readings from msgs until ctx is done or msgs is closed.
func (s *Session) Run(ctx context.Context, msgs <-chan parse.DeviceMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if s.ApplyDeviceMessage(msg) {
				log.Printf("Applied device reading charge=%s unique=%s serial=%s",
					msg.ChargeNo, msg.UniqueNo, msg.SerialNo)
			}
		}
	}
}
