package portfolio

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"QuoteWatch/internal/model"
)

// Snapshot is the persisted form of a portfolio.
type Snapshot struct {
	Lots    []Lot     `json:"lots"`
	SavedAt time.Time `json:"savedAt"`
}

// Snapshot copies every lot in first-purchase order.
func (p *Portfolio) Snapshot() Snapshot {
	snap := Snapshot{SavedAt: time.Now().UTC()}
	for _, lots := range p.holdings() {
		snap.Lots = append(snap.Lots, lots...)
	}
	return snap
}

// Restore replaces the portfolio content with snap. Nothing changes when
// any lot is invalid.
func (p *Portfolio) Restore(snap Snapshot) error {
	for i, l := range snap.Lots {
		if err := validateLot(l.Symbol, l.Shares, l.BuyPrice); err != nil {
			return fmt.Errorf("lot %d: %w", i, err)
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lots = make(map[model.Symbol][]Lot)
	p.order = nil
	for _, l := range snap.Lots {
		p.appendLocked(l)
	}
	return nil
}

// LoadFile restores the portfolio from a JSON file. A missing file leaves
// the portfolio empty.
func (p *Portfolio) LoadFile(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode portfolio %s: %w", filePath, err)
	}
	return p.Restore(snap)
}

// SaveFile writes the portfolio to a JSON file.
func (p *Portfolio) SaveFile(filePath string) error {
	data, err := json.MarshalIndent(p.Snapshot(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0644)
}
