package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wendao/limitpulse/pkg/logger"
)

// Data types of persisted snapshot artifacts.
const (
	TypeQuotes    = "quotes"
	TypeLimitUp   = "limit_up"
	TypeLimitDown = "limit_down"
	TypeSuspended = "suspended"
)

// ErrNotFound is returned when no location holds the requested artifact.
var ErrNotFound = errors.New("store: artifact not found")

// Envelope wraps one persisted artifact with its acquisition metadata.
// Data carries the payload unmodified so readers of one data type can
// decode it into the matching concrete slice.
type Envelope struct {
	FetchDate         string          `json:"fetchDate"` // RFC3339 acquisition instant
	Date              string          `json:"date"`      // trading date YYYY-MM-DD
	DataType          string          `json:"dataType"`
	Data              json.RawMessage `json:"data"`
	TotalCount        int             `json:"totalCount"`
	MainBoardCount    int             `json:"mainBoardCount,omitempty"`
	GrowthBoardCount  int             `json:"growthBoardCount,omitempty"`
	CalculationMethod string          `json:"calculationMethod,omitempty"`
}

// NewEnvelope builds an envelope around a payload, stamping the current
// acquisition time.
func NewEnvelope(dataType, date string, payload interface{}) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("store: marshal %s payload: %w", dataType, err)
	}
	return &Envelope{
		FetchDate: time.Now().Format(time.RFC3339),
		Date:      date,
		DataType:  dataType,
		Data:      data,
	}, nil
}

// Location is one place artifacts can live. Implementations must treat
// Put as overwrite and return ErrNotFound from Get on a miss.
type Location interface {
	Name() string
	Put(ctx context.Context, dataType, date string, payload []byte) error
	Get(ctx context.Context, dataType, date string) ([]byte, error)

	// Dates lists the dates a data type has artifacts for, unordered.
	// Locations that cannot enumerate return an empty list.
	Dates(ctx context.Context, dataType string) ([]string, error)
}

// PartialWriteError reports the locations a Put failed to reach while at
// least one other location succeeded. The artifact is durable; callers
// decide whether the degraded redundancy matters.
type PartialWriteError struct {
	DataType string
	Date     string
	Failures map[string]error
}

func (e *PartialWriteError) Error() string {
	names := make([]string, 0, len(e.Failures))
	for name := range e.Failures {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("store: partial write of %s/%s, failed locations: %s",
		e.DataType, e.Date, strings.Join(names, ", "))
}

// Store fans writes out to every location and reads from them in order.
type Store struct {
	locations []Location
	logger    *logger.Logger
}

// New creates a store over the given locations. Read preference follows
// the slice order.
func New(log *logger.Logger, locations ...Location) (*Store, error) {
	if len(locations) == 0 {
		return nil, errors.New("store: at least one location required")
	}
	return &Store{locations: locations, logger: log}, nil
}

// Put writes the envelope to every location. It fails outright only when
// no location accepts the write; a mixed outcome returns a
// *PartialWriteError alongside durable data.
func (s *Store) Put(ctx context.Context, env *Envelope) error {
	payload, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal envelope: %w", err)
	}

	failures := map[string]error{}
	for _, loc := range s.locations {
		if err := loc.Put(ctx, env.DataType, env.Date, payload); err != nil {
			failures[loc.Name()] = err
			s.logger.WithFields(map[string]interface{}{
				"location": loc.Name(),
				"dataType": env.DataType,
				"date":     env.Date,
				"error":    err.Error(),
			}).Warn("Location write failed")
		}
	}

	if len(failures) == len(s.locations) {
		return fmt.Errorf("store: all %d locations failed writing %s/%s: %w",
			len(s.locations), env.DataType, env.Date, firstError(failures))
	}
	if len(failures) > 0 {
		return &PartialWriteError{DataType: env.DataType, Date: env.Date, Failures: failures}
	}
	return nil
}

// Get reads the artifact for an exact date, trying locations in order.
func (s *Store) Get(ctx context.Context, dataType, date string) (*Envelope, error) {
	for _, loc := range s.locations {
		payload, err := loc.Get(ctx, dataType, date)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				s.logger.WithFields(map[string]interface{}{
					"location": loc.Name(),
					"dataType": dataType,
					"date":     date,
					"error":    err.Error(),
				}).Warn("Location read failed, trying next")
			}
			continue
		}
		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			s.logger.WithFields(map[string]interface{}{
				"location": loc.Name(),
				"dataType": dataType,
				"date":     date,
			}).Warn("Corrupt artifact, trying next location")
			continue
		}
		return &env, nil
	}
	return nil, ErrNotFound
}

// GetLatest reads the newest artifact at or before the given date. It
// unions the date listings of every location, so an artifact present in
// only the backup location is still found.
func (s *Store) GetLatest(ctx context.Context, dataType, date string) (*Envelope, error) {
	seen := map[string]struct{}{}
	for _, loc := range s.locations {
		dates, err := loc.Dates(ctx, dataType)
		if err != nil {
			continue
		}
		for _, d := range dates {
			if d <= date {
				seen[d] = struct{}{}
			}
		}
	}

	candidates := make([]string, 0, len(seen))
	for d := range seen {
		candidates = append(candidates, d)
	}
	// Dates are ISO formatted, so lexicographic order is chronological.
	sort.Sort(sort.Reverse(sort.StringSlice(candidates)))

	for _, d := range candidates {
		env, err := s.Get(ctx, dataType, d)
		if err == nil {
			return env, nil
		}
	}
	return nil, ErrNotFound
}

func firstError(failures map[string]error) error {
	for _, err := range failures {
		return err
	}
	return nil
}
