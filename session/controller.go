package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"ragyverse/backend"
	"ragyverse/capture"
	"ragyverse/log"
	"ragyverse/metrics"
)

// Recorder is the microphone side. capture.Manager implements it.
type Recorder interface {
	Start() (*capture.RecordingSession, error)
	Stop(rec *capture.RecordingSession)
	Cancel(rec *capture.RecordingSession)
}

// Backend answers questions about the uploaded document. backend.Client
// implements it.
type Backend interface {
	UploadDocument(ctx context.Context, name string, data []byte) (string, error)
	SubmitText(ctx context.Context, question string) (backend.Answer, error)
	SubmitAudio(ctx context.Context, a backend.Audio) (backend.Answer, error)
	ResetSession(ctx context.Context) error
}

// Synthesizer turns an answer into a validated audio reference.
// synth.Client implements it.
type Synthesizer interface {
	Synthesize(ctx context.Context, answer, question, token string) (string, error)
}

type Config struct {
	Recorder Recorder // nil disables voice questions
	Backend  Backend
	Synth    Synthesizer
	Metrics  *metrics.Metrics
	Token    string
}

// Controller owns the session state and runs at most one question
// pipeline at a time.
type Controller struct {
	rec     Recorder
	backend Backend
	synth   Synthesizer
	metrics *metrics.Metrics

	ctx    context.Context // cancelled by Close
	cancel context.CancelFunc
	wg     sync.WaitGroup
	disp   *dispatcher

	mu        sync.Mutex
	s         Snapshot
	busy      bool
	epoch     uint64
	recording *capture.RecordingSession
	// stopPending records a stop that arrived while the device was opening.
	stopPending bool
	closed      bool
}

func New(cfg Config) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		rec:     cfg.Recorder,
		backend: cfg.Backend,
		synth:   cfg.Synth,
		metrics: cfg.Metrics,
		ctx:     ctx,
		cancel:  cancel,
		disp:    newDispatcher(),
	}
	c.s.AuthToken = cfg.Token
	return c
}

// Subscribe registers o and immediately queues the current snapshot for
// it alone. The returned func unsubscribes.
func (c *Controller) Subscribe(o Observer) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.s
	s.Busy = c.busy
	return c.disp.subscribe(o, s)
}

// bind derives a request context that also ends when the controller is
// closed. Stopping a recording never cancels it.
func (c *Controller) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.s
	s.Busy = c.busy
	return s
}

func (c *Controller) SetAuthToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.AuthToken = token
	c.publishLocked()
}

// SetDocumentText installs text extracted elsewhere.
func (c *Controller) SetDocumentText(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.admitLocked(); err != nil {
		return err
	}
	c.s.DocumentText = text
	c.publishLocked()
	return nil
}

// UploadDocument sends a PDF to the backend and stores the extracted text.
func (c *Controller) UploadDocument(ctx context.Context, name string, data []byte) error {
	c.mu.Lock()
	if err := c.admitLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if !backend.IsPDF(name, data) {
		err := &InvalidInputError{Message: msgInvalidDocument}
		c.failLocked(opUpload, err)
		c.mu.Unlock()
		return err
	}
	c.busy = true
	c.s.Err = nil
	c.clearAnswerLocked()
	epoch := c.epoch
	c.publishLocked()
	c.wg.Add(1)
	c.mu.Unlock()
	defer c.wg.Done()

	ctx, cancel := c.bind(ctx)
	defer cancel()
	text, err := c.backend.UploadDocument(ctx, name, data)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return ErrDiscarded
	}
	if err != nil {
		c.failLocked(opUpload, err)
		return err
	}
	c.busy = false
	c.s.DocumentText = text
	c.setPhaseLocked(PhaseIdle, opUpload)
	c.publishLocked()
	log.Info("document uploaded: " + name)
	return nil
}

// SubmitTextQuestion runs the text pipeline to completion: submission,
// synthesis and probe.
func (c *Controller) SubmitTextQuestion(ctx context.Context, text string) error {
	c.mu.Lock()
	if err := c.admitLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	question := strings.TrimSpace(text)
	if question == "" {
		err := &InvalidInputError{Message: msgEmptyQuestion}
		c.failLocked(opText, err)
		c.mu.Unlock()
		return err
	}
	epoch := c.beginLocked(opText)
	c.wg.Add(1)
	c.mu.Unlock()
	defer c.wg.Done()

	ctx, cancel := c.bind(ctx)
	defer cancel()
	return c.pipeline(ctx, epoch, opText, func(ctx context.Context) (backend.Answer, error) {
		return c.backend.SubmitText(ctx, question)
	})
}

// StartVoiceQuestion acquires the microphone and returns once recording
// runs. The rest of the pipeline continues in the background after the
// recording ends by StopVoiceQuestion or the duration ceiling.
func (c *Controller) StartVoiceQuestion() error {
	c.mu.Lock()
	if err := c.admitLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.rec == nil {
		err := &capture.PermissionError{Reason: "no audio capture configured"}
		c.failLocked(opVoice, err)
		c.mu.Unlock()
		return err
	}
	c.s.Recording = RecordingStarting
	c.stopPending = false
	epoch := c.beginLocked(opVoice)
	c.mu.Unlock()

	rec, err := c.rec.Start()

	var stopNow bool
	defer func() {
		if stopNow {
			c.rec.Stop(rec)
		}
	}()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		if rec != nil {
			c.rec.Cancel(rec)
		}
		return ErrDiscarded
	}
	if err != nil {
		c.s.Recording = RecordingIdle
		c.stopPending = false
		c.failLocked(opVoice, err)
		return err
	}
	c.recording = rec
	c.s.Recording = RecordingActive
	c.s.Prompt = recordingPrompt
	c.setPhaseLocked(PhaseRecording, opVoice)
	c.publishLocked()
	stopNow, c.stopPending = c.stopPending, false

	c.wg.Add(1)
	go c.runVoice(rec, epoch)
	return nil
}

// StopVoiceQuestion ends the current recording early. A stop that arrives
// while the microphone is still opening is applied once it runs. It is a
// no-op when nothing is recording.
func (c *Controller) StopVoiceQuestion() {
	c.mu.Lock()
	rec := c.recording
	if rec == nil && c.s.Recording == RecordingStarting {
		c.stopPending = true
	}
	c.mu.Unlock()
	if rec != nil {
		c.rec.Stop(rec)
	}
}

// ResetSession clears everything but the auth token. The backend is told
// best-effort; its error is returned but the local reset has already
// happened.
func (c *Controller) ResetSession(ctx context.Context) error {
	c.resetLocal(false)
	if c.backend == nil {
		return nil
	}
	if err := c.backend.ResetSession(ctx); err != nil {
		log.Warnf("backend reset failed: %v", err)
		c.metrics.Error(Classify(err).String())
		return err
	}
	return nil
}

// Logout resets the session and drops the auth token.
func (c *Controller) Logout(ctx context.Context) error {
	err := c.ResetSession(ctx)
	c.SetAuthToken("")
	return err
}

// Close cancels any recording, waits for in-flight work to settle and
// stops observer delivery.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.resetLocal(true)
	c.cancel()
	c.wg.Wait()
	c.disp.close()
}

func (c *Controller) resetLocal(closing bool) {
	c.mu.Lock()
	c.epoch++
	rec := c.recording
	c.recording = nil
	c.stopPending = false
	c.busy = false
	token := c.s.AuthToken
	version := c.s.Version
	from := c.s.Phase
	c.s = Snapshot{AuthToken: token, Version: version}
	if from != PhaseIdle {
		log.Transition(from.String(), PhaseIdle.String(), opReset.String())
		c.metrics.Transition(PhaseIdle.String())
	}
	if !closing {
		c.publishLocked()
	}
	c.mu.Unlock()

	if rec != nil {
		c.rec.Cancel(rec)
	}
}

func (c *Controller) runVoice(rec *capture.RecordingSession, epoch uint64) {
	defer c.wg.Done()
	comp := rec.Completion()
	c.metrics.ObserveRecording(comp.Reason.String(), comp.Elapsed)

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	c.recording = nil
	c.s.Recording = RecordingIdle
	c.s.Prompt = ""
	if comp.Err != nil {
		if errors.Is(comp.Err, capture.ErrCancelled) {
			c.busy = false
			c.setPhaseLocked(PhaseIdle, opVoice)
			c.publishLocked()
		} else {
			c.failLocked(opVoice, comp.Err)
		}
		c.mu.Unlock()
		return
	}
	c.setPhaseLocked(PhaseTranscribing, opVoice)
	c.publishLocked()
	c.mu.Unlock()

	audio := backend.Audio{
		Data:        comp.Payload.Data,
		Filename:    "question." + comp.Payload.Ext,
		ContentType: comp.Payload.ContentType,
	}
	c.pipeline(c.ctx, epoch, opVoice, func(ctx context.Context) (backend.Answer, error) {
		return c.backend.SubmitAudio(ctx, audio)
	})
}

// pipeline runs submission then synthesis for one question. Results are
// dropped when the session was reset in the meantime.
func (c *Controller) pipeline(ctx context.Context, epoch uint64, op operation, submit func(context.Context) (backend.Answer, error)) error {
	if !c.advance(epoch, PhaseAwaitingAnswer, op) {
		return ErrDiscarded
	}

	ans, err := submit(ctx)

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return ErrDiscarded
	}
	if err != nil {
		c.failLocked(op, err)
		c.mu.Unlock()
		return err
	}
	c.s.Question = ans.Question
	c.s.Answer = ans.Answer
	c.setPhaseLocked(PhaseSynthesizing, op)
	c.publishLocked()
	token := c.s.AuthToken
	c.mu.Unlock()

	log.QA(ans.Question, ans.Answer)
	c.metrics.Answered(op.String())

	ref, err := c.synth.Synthesize(ctx, ans.Answer, ans.Question, token)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return ErrDiscarded
	}
	if err != nil {
		c.failLocked(opSynthesize, err)
		return err
	}
	c.s.AudioRef = ref
	c.busy = false
	c.setPhaseLocked(PhaseAnswerReady, op)
	c.publishLocked()
	return nil
}

func (c *Controller) advance(epoch uint64, p Phase, op operation) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return false
	}
	c.setPhaseLocked(p, op)
	c.publishLocked()
	return true
}

func (c *Controller) admitLocked() error {
	if c.closed {
		return ErrClosed
	}
	if c.busy {
		c.metrics.RejectConcurrent()
		return ErrConcurrentOperation
	}
	return nil
}

// beginLocked claims the single-flight slot for a new question.
func (c *Controller) beginLocked(op operation) uint64 {
	c.busy = true
	c.s.Err = nil
	c.clearAnswerLocked()
	c.setPhaseLocked(PhaseIdle, op)
	c.publishLocked()
	return c.epoch
}

func (c *Controller) clearAnswerLocked() {
	c.s.Question = ""
	c.s.Answer = ""
	c.s.AudioRef = ""
}

// failLocked records err as the one active error and ends the pipeline.
func (c *Controller) failLocked(op operation, err error) {
	rec := describe(op, err)
	c.s.Err = rec
	c.busy = false
	c.metrics.Error(rec.Kind.String())
	log.Errorf("%s failed (%s): %v", op, rec.Kind, err)
	c.setPhaseLocked(PhaseError, op)
	c.publishLocked()
}

func (c *Controller) setPhaseLocked(p Phase, op operation) {
	if c.s.Phase == p {
		return
	}
	log.Transition(c.s.Phase.String(), p.String(), op.String())
	c.metrics.Transition(p.String())
	c.s.Phase = p
}

func (c *Controller) publishLocked() {
	c.s.Version++
	c.s.Busy = c.busy
	c.disp.push(c.s)
}
