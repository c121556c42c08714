package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/stampcard/internal/apperror"
)

// BoothCount is the number of stations on every stamp card.
const BoothCount = 11

// Booth is one physical station at the venue.
type Booth struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

var booths = func() []Booth {
	out := make([]Booth, BoothCount)
	for i := range out {
		n := i + 1
		ext := "jpg"
		if n >= 5 && n <= 7 {
			ext = "png"
		}
		out[i] = Booth{
			ID:    "booth" + strconv.Itoa(n),
			Name:  "Booth " + strconv.Itoa(n),
			Image: fmt.Sprintf("/booth%d.%s", n, ext),
		}
	}
	return out
}()

// Booths returns the booth catalog in card order.
func Booths() []Booth {
	out := make([]Booth, len(booths))
	copy(out, booths)
	return out
}

// BoothIndex maps "boothN" (1 <= N <= 11) to its slot position.
// Anything else, including "booth01" or "Booth1", is not a booth.
func BoothIndex(boothID string) (int, bool) {
	digits, ok := strings.CutPrefix(boothID, "booth")
	if !ok || digits == "" || digits[0] == '0' {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 || n > BoothCount {
		return 0, false
	}
	return n - 1, true
}

// BoothByID looks up a booth in the catalog.
func BoothByID(boothID string) (Booth, bool) {
	i, ok := BoothIndex(boothID)
	if !ok {
		return Booth{}, false
	}
	return booths[i], true
}

// Slot is one position on a stamp card. FilledAt is nil until Filled.
type Slot struct {
	BoothID  string     `json:"boothId"  firestore:"boothId"`
	Filled   bool       `json:"filled"   firestore:"filled"`
	FilledAt *time.Time `json:"filledAt" firestore:"filledAt"`
}

// StampCard is stored under the same key as its User.
type StampCard struct {
	UserID      string    `json:"userId"      firestore:"userId"`
	Stamps      []Slot    `json:"stamps"      firestore:"stamps"`
	CreatedAt   time.Time `json:"createdAt"   firestore:"createdAt"`
	LastUpdated time.Time `json:"lastUpdated" firestore:"lastUpdated"`
}

// NewStampCard returns an empty card: 11 unfilled slots, booth1..booth11.
func NewStampCard(userID string, now time.Time) *StampCard {
	stamps := make([]Slot, BoothCount)
	for i := range stamps {
		stamps[i] = Slot{BoothID: booths[i].ID}
	}
	return &StampCard{
		UserID:      userID,
		Stamps:      stamps,
		CreatedAt:   now,
		LastUpdated: now,
	}
}

// Mark fills the slot for boothID. A filled slot is never touched again.
func (c *StampCard) Mark(boothID string, at time.Time) error {
	i, ok := BoothIndex(boothID)
	if !ok || i >= len(c.Stamps) || c.Stamps[i].BoothID != boothID {
		return apperror.InvalidBooth(boothID)
	}
	if c.Stamps[i].Filled {
		return apperror.AlreadyMarked(boothID)
	}
	c.Stamps[i].Filled = true
	c.Stamps[i].FilledAt = &at
	c.LastUpdated = at
	return nil
}

// Collected counts filled slots.
func (c *StampCard) Collected() int {
	n := 0
	for _, s := range c.Stamps {
		if s.Filled {
			n++
		}
	}
	return n
}

// Complete reports whether every booth has been visited.
func (c *StampCard) Complete() bool {
	return c.Collected() == BoothCount
}

// Validate checks the structural invariants of a card loaded from storage.
func (c *StampCard) Validate() error {
	if len(c.Stamps) != BoothCount {
		return fmt.Errorf("stamp card %s has %d slots, want %d", c.UserID, len(c.Stamps), BoothCount)
	}
	for i, s := range c.Stamps {
		if s.BoothID != booths[i].ID {
			return fmt.Errorf("stamp card %s slot %d is %q, want %q", c.UserID, i, s.BoothID, booths[i].ID)
		}
		if s.Filled != (s.FilledAt != nil) {
			return fmt.Errorf("stamp card %s slot %s has filled=%t with filledAt=%v", c.UserID, s.BoothID, s.Filled, s.FilledAt)
		}
	}
	return nil
}
