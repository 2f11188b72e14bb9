package stub

import (
	"bufio"
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/quizdesk/quizdesk/internal/api"
	"github.com/quizdesk/quizdesk/internal/logging"
	"github.com/quizdesk/quizdesk/internal/storage"
)

var (
	errBlobMissing = errors.New("stored file is missing")
	errNotAPDF     = errors.New("file is not a valid PDF")
)

// Pipeline fakes the asynchronous document and quiz workers: uploads
// move uploaded -> processing -> processed (or failed), quiz builds move
// generating -> generated. Delays are configurable so tests can run it
// near-instant while interactive runs still show polling.
type Pipeline struct {
	store Store
	blobs storage.BlobStore
	log   *logging.Logger

	processingDelay time.Duration
	generationDelay time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPipeline(store Store, blobs storage.BlobStore, log *logging.Logger, processingDelay, generationDelay time.Duration) *Pipeline {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		store:           store,
		blobs:           blobs,
		log:             log,
		processingDelay: processingDelay,
		generationDelay: generationDelay,
		ctx:             ctx,
		cancel:          cancel,
	}
}

// Close stops accepting work and waits for in-flight jobs.
func (p *Pipeline) Close() {
	p.cancel()
	p.wg.Wait()
}

// ProcessPDF schedules the status walk for a freshly uploaded document.
func (p *Pipeline) ProcessPDF(id string) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.processPDF(id)
	}()
}

func (p *Pipeline) processPDF(id string) {
	if !p.sleep(p.processingDelay / 4) {
		return
	}
	doc, err := p.store.GetPDF(id)
	if err != nil {
		p.log.Warn("pipeline: pdf vanished before processing", "pdf_id", id)
		return
	}
	doc.Status = api.PDFStatusProcessing
	if err := p.store.PutPDF(doc); err != nil {
		p.log.Error("pipeline: mark processing", "pdf_id", id, "err", err)
		return
	}

	if !p.sleep(p.processingDelay - p.processingDelay/4) {
		return
	}
	doc, err = p.store.GetPDF(id)
	if err != nil {
		return
	}

	pages, words, perr := p.inspectBlob(doc.BlobKey)
	now := time.Now().UTC()
	if perr != nil {
		doc.Status = api.PDFStatusFailed
		doc.ErrorMessage = perr.Error()
		p.log.Warn("pipeline: pdf processing failed", "pdf_id", id, "err", perr)
	} else {
		doc.Status = api.PDFStatusProcessed
		doc.PageCount = pages
		doc.WordCount = words
		doc.ProcessedAt = &now
	}
	if err := p.store.PutPDF(doc); err != nil {
		p.log.Error("pipeline: finish processing", "pdf_id", id, "err", err)
		return
	}
	kind := "pdf_processed"
	if doc.Status == api.PDFStatusFailed {
		kind = "pdf_failed"
	}
	_ = p.store.AppendActivity(api.ActivityEntry{
		Kind: kind, Subject: doc.Title, Detail: doc.ErrorMessage, Timestamp: now,
	})
}

// inspectBlob sanity-checks the upload and derives fake page and word
// counts from its size. Anything without a %PDF header fails, which
// gives the failed status a reachable path.
func (p *Pipeline) inspectBlob(key string) (pages, words int, err error) {
	rc, err := p.blobs.Get(key)
	if err != nil {
		return 0, 0, errBlobMissing
	}
	defer rc.Close()

	br := bufio.NewReader(rc)
	head, _ := br.Peek(5)
	if !strings.HasPrefix(string(head), "%PDF") {
		return 0, 0, errNotAPDF
	}
	size := len(head)
	buf := make([]byte, 32*1024)
	for {
		n, rerr := br.Read(buf)
		size += n
		if rerr != nil {
			break
		}
	}
	return size/2000 + 1, size / 6, nil
}

// GenerateQuiz schedules question generation for a quiz in the
// generating state.
func (p *Pipeline) GenerateQuiz(id string) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.generateQuiz(id)
	}()
}

func (p *Pipeline) generateQuiz(id string) {
	if !p.sleep(p.generationDelay) {
		return
	}
	quiz, err := p.store.GetQuiz(id)
	if err != nil {
		p.log.Warn("pipeline: quiz vanished before generation", "quiz_id", id)
		return
	}
	if quiz.Status != api.QuizStatusGenerating {
		return
	}

	doc, err := p.store.GetPDF(quiz.PDFID)
	if err != nil {
		quiz.Status = api.QuizStatusFailed
		quiz.ErrorMessage = "source document no longer exists"
	} else {
		questions, realized := buildQuestions(doc, quiz.TotalQuestions, quiz.Difficulty)
		quiz.Questions = questions
		quiz.TotalQuestions = len(questions)
		quiz.Difficulty = realized
		quiz.EstimatedTime = 2 * len(questions)
		quiz.Status = api.QuizStatusGenerated
	}
	if err := p.store.PutQuiz(quiz); err != nil {
		p.log.Error("pipeline: store generated quiz", "quiz_id", id, "err", err)
		return
	}
	_ = p.store.AppendActivity(api.ActivityEntry{
		Kind: "quiz_generated", Subject: quiz.Title, Detail: quiz.ErrorMessage, Timestamp: time.Now().UTC(),
	})
	p.log.Info("pipeline: quiz ready", "quiz_id", id, "questions", quiz.TotalQuestions)
}

// sleep waits d unless the pipeline is shutting down.
func (p *Pipeline) sleep(d time.Duration) bool {
	if d <= 0 {
		return p.ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-p.ctx.Done():
		return false
	}
}
