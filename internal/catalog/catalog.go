// Package catalog holds the static book list and subscription plans.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed books.yaml
var embedded []byte

type Category string

const (
	Business     Category = "Business"
	Psychology   Category = "Psychology"
	Fiction      Category = "Fiction"
	Science      Category = "Science"
	Biography    Category = "Biography"
	SelfHelp     Category = "Self Help"
	Productivity Category = "Productivity"
)

// Categories lists every category in display order.
func Categories() []Category {
	return []Category{Business, Psychology, Fiction, Science, Biography, SelfHelp, Productivity}
}

func (c Category) valid() bool {
	for _, k := range Categories() {
		if c == k {
			return true
		}
	}
	return false
}

type FullSummary struct {
	MainIdea  string   `yaml:"main_idea" json:"mainIdea"`
	KeyPoints []string `yaml:"key_points" json:"keyPoints"`
	Lessons   []string `yaml:"lessons" json:"lessons"`
}

type Book struct {
	ID          string       `yaml:"id" json:"id"`
	Title       string       `yaml:"title" json:"title"`
	Author      string       `yaml:"author" json:"author"`
	CoverURL    string       `yaml:"cover_url" json:"coverUrl"`
	Category    Category     `yaml:"category" json:"category"`
	Rating      float64      `yaml:"rating" json:"rating"`
	Duration    int          `yaml:"duration" json:"duration"` // minutes
	Summary     string       `yaml:"summary" json:"summary"`
	LongSummary string       `yaml:"long_summary,omitempty" json:"longSummary,omitempty"`
	FullSummary *FullSummary `yaml:"full_summary,omitempty" json:"fullSummary,omitempty"`
	AudioURL    string       `yaml:"audio_url,omitempty" json:"audioUrl,omitempty"`
}

// NarrationText is the text read aloud for a book.
func (b Book) NarrationText() string {
	if s := strings.TrimSpace(b.LongSummary); s != "" {
		return s
	}
	return b.Summary
}

type Plan struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Price       int      `yaml:"price" json:"price"`
	Period      string   `yaml:"period" json:"period"`
	Features    []string `yaml:"features" json:"features"`
	Recommended bool     `yaml:"recommended,omitempty" json:"recommended,omitempty"`
	Color       string   `yaml:"color" json:"color"`
}

// Paid reports whether choosing the plan goes through checkout.
func (p Plan) Paid() bool { return p.Price > 0 }

type document struct {
	Plans []Plan `yaml:"plans"`
	Books []Book `yaml:"books"`
}

// Catalog is read-only after Load.
type Catalog struct {
	books []Book
	plans []Plan
	index map[string]int
}

// Load reads the catalog at path, or the built-in catalog when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(embedded)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a catalog document. Unknown fields are rejected.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	c := &Catalog{books: doc.Books, plans: doc.Plans, index: make(map[string]int, len(doc.Books))}
	for i, b := range doc.Books {
		if _, dup := c.index[b.ID]; !dup {
			c.index[b.ID] = i
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate reports every problem found, joined.
func (c *Catalog) Validate() error {
	var errs []error
	seen := make(map[string]bool)
	for i, b := range c.books {
		where := fmt.Sprintf("book %d (%s)", i, b.ID)
		switch {
		case b.ID == "":
			errs = append(errs, fmt.Errorf("book %d: id must not be empty", i))
		case seen[b.ID]:
			errs = append(errs, fmt.Errorf("%s: duplicate id", where))
		}
		seen[b.ID] = true
		if strings.TrimSpace(b.Title) == "" || strings.TrimSpace(b.Author) == "" {
			errs = append(errs, fmt.Errorf("%s: title and author are required", where))
		}
		if !b.Category.valid() {
			errs = append(errs, fmt.Errorf("%s: unknown category %q", where, b.Category))
		}
		if b.Rating < 0 || b.Rating > 5 {
			errs = append(errs, fmt.Errorf("%s: rating must be between 0 and 5", where))
		}
		if b.Duration <= 0 {
			errs = append(errs, fmt.Errorf("%s: duration must be positive", where))
		}
		if strings.TrimSpace(b.NarrationText()) == "" {
			errs = append(errs, fmt.Errorf("%s: summary must not be empty", where))
		}
	}
	seenPlan := make(map[string]bool)
	for i, p := range c.plans {
		if p.ID == "" || seenPlan[p.ID] {
			errs = append(errs, fmt.Errorf("plan %d: id %q missing or duplicated", i, p.ID))
		}
		seenPlan[p.ID] = true
		if p.Price < 0 {
			errs = append(errs, fmt.Errorf("plan %s: price must not be negative", p.ID))
		}
		switch p.Period {
		case "month", "year", "forever":
		default:
			errs = append(errs, fmt.Errorf("plan %s: unknown period %q", p.ID, p.Period))
		}
	}
	return errors.Join(errs...)
}

// All returns every book in catalog order.
func (c *Catalog) All() []Book { return append([]Book(nil), c.books...) }

func (c *Catalog) Find(id string) (Book, bool) {
	i, ok := c.index[id]
	if !ok {
		return Book{}, false
	}
	return c.books[i], true
}

// Popular returns books rated 4.8 or higher.
func (c *Catalog) Popular() []Book {
	return c.filter(func(b Book) bool { return b.Rating >= 4.8 })
}

// Newest returns the third through sixth books.
func (c *Catalog) Newest() []Book {
	lo, hi := 2, 6
	if lo > len(c.books) {
		lo = len(c.books)
	}
	if hi > len(c.books) {
		hi = len(c.books)
	}
	return append([]Book(nil), c.books[lo:hi]...)
}

func (c *Catalog) ByCategory(cat Category) []Book {
	return c.filter(func(b Book) bool { return b.Category == cat })
}

// Similar returns up to three other books in the same category.
func (c *Catalog) Similar(book Book) []Book {
	out := c.filter(func(b Book) bool { return b.Category == book.Category && b.ID != book.ID })
	if len(out) > 3 {
		out = out[:3]
	}
	return out
}

// Search matches q against title and author, ignoring case.
func (c *Catalog) Search(q string) []Book {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return c.All()
	}
	return c.filter(func(b Book) bool {
		return strings.Contains(strings.ToLower(b.Title), q) || strings.Contains(strings.ToLower(b.Author), q)
	})
}

func (c *Catalog) Plans() []Plan { return append([]Plan(nil), c.plans...) }

func (c *Catalog) Plan(id string) (Plan, bool) {
	for _, p := range c.plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

func (c *Catalog) filter(keep func(Book) bool) []Book {
	var out []Book
	for _, b := range c.books {
		if keep(b) {
			out = append(out, b)
		}
	}
	return out
}
