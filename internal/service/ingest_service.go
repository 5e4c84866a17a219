package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/repository"
	"github.com/postpilot/postpilot/internal/transfer"
	"github.com/postpilot/postpilot/pkg/utils"
)

const maxContentLength = 280

// BatchError aggregates every row error of a rejected upload. Ingestion is
// all-or-nothing: when any row is invalid nothing from the batch is stored.
type BatchError struct {
	Rows []transfer.RowError
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("csv batch rejected: %d invalid row(s)", len(e.Rows))
}

type IngestService interface {
	Ingest(ctx context.Context, r io.Reader) (*transfer.UploadResult, error)
}

type ingestService struct {
	store repository.ScheduleStore
}

func NewIngestService(store repository.ScheduleStore) IngestService {
	return &ingestService{store: store}
}

// Ingest parses a CSV upload, validates it, resolves threads and persists
// the batch atomically. Timezone conversion happens here, once: the stored
// scheduled_at is the canonical UTC instant and the zone name is only kept
// for display.
func (s *ingestService) Ingest(ctx context.Context, r io.Reader) (*transfer.UploadResult, error) {
	posts, err := parseCSV(r)
	if err != nil {
		return nil, err
	}

	threads, err := ResolveThreads(posts)
	if err != nil {
		return nil, &BatchError{Rows: []transfer.RowError{{Message: err.Error()}}}
	}

	if err := s.store.InsertBatch(ctx, posts); err != nil {
		return nil, err
	}

	standalone := 0
	for _, p := range posts {
		if p.Standalone() {
			standalone++
		}
	}

	slog.Info("csv batch ingested",
		"posts", standalone,
		"threads", len(threads))

	return &transfer.UploadResult{
		PostsScheduled:   standalone,
		ThreadsScheduled: len(threads),
	}, nil
}

func parseCSV(r io.Reader) ([]*models.Post, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, &BatchError{Rows: []transfer.RowError{{Line: 1, Message: fmt.Sprintf("unable to read csv header: %v", err)}}}
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, name := range []string{"content", "date", "time", "timezone"} {
		if _, ok := cols[name]; !ok {
			return nil, &BatchError{Rows: []transfer.RowError{{Line: 1, Field: name, Message: fmt.Sprintf("csv is missing required column %q", name)}}}
		}
	}

	var posts []*models.Post
	var rowErrs []transfer.RowError
	line := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			rowErrs = append(rowErrs, transfer.RowError{Line: line, Message: err.Error()})
			continue
		}

		field := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		fail := func(name, format string, args ...any) {
			rowErrs = append(rowErrs, transfer.RowError{Line: line, Field: name, Message: fmt.Sprintf(format, args...)})
		}

		post, errs := parseRow(line, field)
		if len(errs) > 0 {
			rowErrs = append(rowErrs, errs...)
			continue
		}

		id, err := utils.NewPostID()
		if err != nil {
			fail("", "unable to assign post id: %v", err)
			continue
		}
		post.ID = id
		posts = append(posts, post)
	}

	if len(rowErrs) > 0 {
		return nil, &BatchError{Rows: rowErrs}
	}
	if len(posts) == 0 {
		return nil, &BatchError{Rows: []transfer.RowError{{Line: 1, Message: "csv contains no post rows"}}}
	}
	return posts, nil
}

func parseRow(line int, field func(string) string) (*models.Post, []transfer.RowError) {
	var errs []transfer.RowError
	fail := func(name, format string, args ...any) {
		errs = append(errs, transfer.RowError{Line: line, Field: name, Message: fmt.Sprintf(format, args...)})
	}

	content := field("content")
	if content == "" {
		fail("content", "content is required")
	} else if n := utf8.RuneCountInString(content); n > maxContentLength {
		fail("content", "content exceeds %d characters (currently %d)", maxContentLength, n)
	}

	tzName := field("timezone")
	if tzName == "" {
		tzName = "UTC"
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		fail("timezone", "unrecognized timezone %q", tzName)
	}

	var scheduledAt time.Time
	dateStr := field("date")
	day, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		fail("date", "invalid date %q, expected YYYY-MM-DD", dateStr)
	}

	timeStr := field("time")
	clock, err := time.Parse("15:04:05", timeStr)
	if err != nil {
		clock, err = time.Parse("15:04", timeStr)
		if err != nil {
			fail("time", "invalid time %q, expected HH:MM:SS", timeStr)
		}
	}

	if loc != nil && !day.IsZero() && len(errs) == 0 {
		scheduledAt = time.Date(day.Year(), day.Month(), day.Day(),
			clock.Hour(), clock.Minute(), clock.Second(), 0, loc).UTC()
	}

	threadID := field("thread_id")
	threadPos := 0
	if posStr := field("thread_position"); posStr != "" {
		threadPos, err = strconv.Atoi(posStr)
		if err != nil || threadPos < 1 {
			fail("thread_position", "thread_position must be a positive integer, got %q", posStr)
		}
		if threadID == "" {
			fail("thread_position", "thread_position given without thread_id")
		}
	} else if threadID != "" {
		fail("thread_position", "thread_position is required when thread_id is set")
	}

	var mediaURLs []string
	if raw := field("media_urls"); raw != "" {
		for _, u := range strings.Split(raw, ",") {
			u = strings.TrimSpace(u)
			if u == "" {
				continue
			}
			parsed, err := url.Parse(u)
			if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
				fail("media_urls", "invalid media url %q", u)
				continue
			}
			mediaURLs = append(mediaURLs, u)
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}

	return &models.Post{
		Content:        content,
		ScheduledAt:    scheduledAt,
		Timezone:       tzName,
		ThreadID:       threadID,
		ThreadPosition: threadPos,
		ThreadTitle:    field("thread_title"),
		MediaURLs:      mediaURLs,
		Status:         models.PostStatusPending,
		NextAttemptAt:  scheduledAt,
	}, nil
}
