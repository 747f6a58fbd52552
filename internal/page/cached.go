package page

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/conneroisu/frontpage/internal/assets"
	"github.com/conneroisu/frontpage/internal/tstree"
)

// Instruction types.
const (
	// InstructionCOA renders a content object array.
	InstructionCOA = "COA"
	// InstructionUSER calls a registered user function as a content object.
	InstructionUSER = "USER"
	// InstructionFunc calls a registered function on the finished content.
	// Permanent instructions always use this type.
	InstructionFunc = "FUNC"
)

// Instruction describes non-cacheable work. Non-permanent instructions render
// the content behind a marker; permanent ones transform the whole page on
// every response.
type Instruction struct {
	Key        string            `json:"key"`
	Type       string            `json:"type"`
	Conf       *tstree.Node      `json:"conf,omitempty"`
	Target     string            `json:"target,omitempty"`
	Parameters map[string]string `json:"parameters,omitempty"`
	Permanent  bool              `json:"permanent,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
}

// UncachedExt is the state needed to finish a cached page that still holds
// markers.
type UncachedExt struct {
	DivKey               string                    `json:"divKey,omitempty"`
	Assets               *assets.Snapshot          `json:"assets,omitempty"`
	Collector            *assets.CollectorSnapshot `json:"collector,omitempty"`
	AdditionalHeaderData Fragments                 `json:"additionalHeaderData,omitempty"`
	AdditionalFooterData Fragments                 `json:"additionalFooterData,omitempty"`
}

// CachedPageVersion is the schema version of CachedPage.
const CachedPageVersion = 1

// ErrCachedPageVersion is returned for records of another schema version.
var ErrCachedPageVersion = errors.New("unsupported cached page version")

// CachedPage is what the page cache stores for one URL.
type CachedPage struct {
	Version      int           `json:"version"`
	Content      string        `json:"content"`
	Title        string        `json:"title,omitempty"`
	Instructions []Instruction `json:"instructions,omitempty"`
	Ext          UncachedExt   `json:"ext"`
	Status       int           `json:"status,omitempty"`
	Headers      http.Header   `json:"headers,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	Expires      time.Time     `json:"expires"`
}

// CheckVersion reports ErrCachedPageVersion when p or one of its asset
// snapshots was written with another schema. Such a record is a miss.
func (p *CachedPage) CheckVersion() error {
	if p.Version != CachedPageVersion {
		return fmt.Errorf("%w: %d", ErrCachedPageVersion, p.Version)
	}
	if a := p.Ext.Assets; a != nil && a.Version != assets.SnapshotVersion {
		return fmt.Errorf("%w: asset snapshot %d", ErrCachedPageVersion, a.Version)
	}
	if c := p.Ext.Collector; c != nil && c.Version != assets.SnapshotVersion {
		return fmt.Errorf("%w: collector snapshot %d", ErrCachedPageVersion, c.Version)
	}
	return nil
}

// Encode serializes p.
func (p *CachedPage) Encode() ([]byte, error) {
	p.Version = CachedPageVersion
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode cached page: %w", err)
	}
	return data, nil
}

// DecodeCachedPage parses a record written by Encode.
func DecodeCachedPage(data []byte) (*CachedPage, error) {
	var p CachedPage
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode cached page: %w", err)
	}
	if err := p.CheckVersion(); err != nil {
		return nil, err
	}
	return &p, nil
}
