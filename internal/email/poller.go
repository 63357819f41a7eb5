// Package email polls an IMAP mailbox for OpenVAS reports sent as attachments.
package email

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"

	"github.com/hootmeow/openvas-strix/internal/config"
	"github.com/hootmeow/openvas-strix/internal/ingest"
	"github.com/hootmeow/openvas-strix/internal/models"
)

// Ingester is what the poller hands attachments to.
type Ingester interface {
	ProcessReader(ctx context.Context, r io.Reader, name, source string) (*models.Scan, error)
}

type Poller struct {
	cfg    config.EmailConfig
	ingest Ingester
	log    logrus.FieldLogger
	stop   chan struct{}
	done   chan struct{}

	started  atomic.Bool
	stopOnce sync.Once
}

func NewPoller(cfg config.EmailConfig, ing Ingester, log logrus.FieldLogger) *Poller {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Poller{
		cfg:    cfg,
		ingest: ing,
		log:    log.WithField("component", "email"),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start polls in the background until Stop is called. It does nothing when
// the poller is disabled.
func (p *Poller) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	if !p.cfg.Enabled {
		close(p.done)
		return
	}

	interval := time.Duration(p.cfg.PollInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := p.CheckEmail(ctx); err != nil {
					p.log.WithError(err).Error("Email poll failed")
				}
			case <-ctx.Done():
				return
			case <-p.stop:
				return
			}
		}
	}()
}

// Stop ends polling and waits for an in-flight poll to finish. It is a no-op
// when Start was never called and safe to call more than once.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	if !p.started.Load() {
		return
	}
	<-p.done
}

// CheckEmail ingests the report attachments of every unseen message.
func (p *Poller) CheckEmail(ctx context.Context) error {
	p.log.Debug("Checking for new emails")

	addr := fmt.Sprintf("%s:%d", p.cfg.IMAPServer, p.cfg.IMAPPort)
	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return fmt.Errorf("connect failed: %w", err)
	}
	defer c.Logout()

	if err := c.Login(p.cfg.Username, p.cfg.Password); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	mailbox := p.cfg.Mailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	mbox, err := c.Select(mailbox, false)
	if err != nil {
		return fmt.Errorf("select %s failed: %w", mailbox, err)
	}
	if mbox.Messages == 0 {
		return nil
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	seqNums, err := c.Search(criteria)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if len(seqNums) == 0 {
		return nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(seqNums...)

	// Fetching without Peek marks messages as seen.
	section := &imap.BodySectionName{}
	items := []imap.FetchItem{section.FetchItem()}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, items, messages)
	}()

	for msg := range messages {
		r := msg.GetBody(section)
		if r == nil {
			continue
		}
		n, err := p.processMessage(ctx, r)
		if err != nil {
			p.log.WithError(err).WithField("seq", msg.SeqNum).Error("Failed to process message")
			continue
		}
		p.log.WithFields(logrus.Fields{"seq": msg.SeqNum, "reports": n}).Info("Processed message")
	}

	return <-done
}

// processMessage ingests every .xml attachment in a raw RFC 822 message and
// returns how many were ingested.
func (p *Poller) processMessage(ctx context.Context, r io.Reader) (int, error) {
	m, err := mail.ReadMessage(r)
	if err != nil {
		return 0, err
	}

	mediaType, params, err := mime.ParseMediaType(m.Header.Get("Content-Type"))
	if err != nil {
		return 0, err
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return 0, nil
	}

	count := 0
	mr := multipart.NewReader(m.Body, params["boundary"])
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, err
		}

		filename := part.FileName()
		if !strings.HasSuffix(strings.ToLower(filename), ".xml") {
			continue
		}

		body := io.Reader(part)
		if strings.EqualFold(part.Header.Get("Content-Transfer-Encoding"), "base64") {
			body = base64.NewDecoder(base64.StdEncoding, part)
		}

		p.log.WithField("file", filename).Info("Downloaded attachment")
		if _, err := p.ingest.ProcessReader(ctx, body, filename, ingest.SourceEmail); err != nil {
			return count, fmt.Errorf("ingest %s: %w", filename, err)
		}
		count++
	}
	return count, nil
}
