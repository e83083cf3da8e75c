package annotation

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/pixel-profile-mcp/internal/detection"
	"github.com/ironsheep/pixel-profile-mcp/internal/imaging"
)

var (
	// ErrNotFound is returned when no object has the requested ID or name.
	ErrNotFound = errors.New("annotation not found")

	// ErrDuplicateName is returned when a name is already taken by another object.
	ErrDuplicateName = errors.New("annotation name already in use")
)

// Kind is the geometric shape of an object.
type Kind string

const (
	KindLine      Kind = "line"
	KindRectangle Kind = "rectangle"
)

// Purpose selects which detector, if any, runs against an object.
type Purpose string

const (
	// PurposeMeasurement objects only report their geometry.
	PurposeMeasurement Purpose = "measurement"

	// PurposePointDetection lines report the transitions along them.
	PurposePointDetection Purpose = "point_detection"

	// PurposeCornerDetection rectangles report the corners inside them.
	PurposeCornerDetection Purpose = "corner_detection"
)

// ParsePurpose maps a purpose name to a Purpose. The empty string is
// PurposeMeasurement.
func ParsePurpose(s string) (Purpose, error) {
	switch p := Purpose(strings.ToLower(s)); p {
	case "":
		return PurposeMeasurement, nil
	case PurposeMeasurement, PurposePointDetection, PurposeCornerDetection:
		return p, nil
	default:
		return "", fmt.Errorf("unknown purpose %q", s)
	}
}

// Object is a line or rectangle placed on an image.
type Object struct {
	ID      string                 `json:"id"`
	Name    string                 `json:"name"`
	Kind    Kind                   `json:"kind"`
	Purpose Purpose                `json:"purpose"`
	Path    string                 `json:"path"`
	Start   detection.Point        `json:"start"`
	End     detection.Point        `json:"end"`
	Rect    *imaging.RectangleSpec `json:"rect,omitempty"`
	Created time.Time              `json:"created"`
}

// Store holds the objects of a session. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	objects []*Object
	counter map[Kind]int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{counter: make(map[Kind]int)}
}

// AddLine stores a line on the image at path. An empty name is replaced by the
// next free "LineN". Lines may measure or detect transitions.
func (s *Store) AddLine(path, name string, purpose Purpose, start, end detection.Point) (Object, error) {
	if purpose == PurposeCornerDetection {
		return Object{}, fmt.Errorf("a line cannot have purpose %s", purpose)
	}
	if !finite(start.X, start.Y, end.X, end.Y) {
		return Object{}, errors.New("line endpoints must be finite")
	}
	return s.add(&Object{
		Name:    name,
		Kind:    KindLine,
		Purpose: purpose,
		Path:    path,
		Start:   start,
		End:     end,
	})
}

// AddRectangle stores a rectangle on the image at path. An empty name is
// replaced by the next free "RectangleN". Rectangles may measure or detect
// corners.
func (s *Store) AddRectangle(path, name string, purpose Purpose, r imaging.RectangleSpec) (Object, error) {
	if purpose == PurposePointDetection {
		return Object{}, fmt.Errorf("a rectangle cannot have purpose %s", purpose)
	}
	if !finite(r.Left, r.Top, r.Width, r.Height, r.Rotation) || r.Width <= 0 || r.Height <= 0 {
		return Object{}, fmt.Errorf("invalid rectangle %gx%g", r.Width, r.Height)
	}
	return s.add(&Object{
		Name:    name,
		Kind:    KindRectangle,
		Purpose: purpose,
		Path:    path,
		Rect:    &r,
	})
}

func (s *Store) add(o *Object) (Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.Purpose == "" {
		o.Purpose = PurposeMeasurement
	}
	if o.Name == "" {
		o.Name = s.nextNameLocked(o.Kind)
	} else if s.findByNameLocked(o.Name) != nil {
		return Object{}, fmt.Errorf("%w: %s", ErrDuplicateName, o.Name)
	}

	o.ID = uuid.NewString()
	o.Created = time.Now()
	s.objects = append(s.objects, o)
	return *o, nil
}

// nextNameLocked advances the per-kind counter until it finds a name that no
// object uses, so user-chosen names like "Line3" are skipped.
func (s *Store) nextNameLocked(k Kind) string {
	prefix := "Line"
	if k == KindRectangle {
		prefix = "Rectangle"
	}
	for {
		s.counter[k]++
		name := fmt.Sprintf("%s%d", prefix, s.counter[k])
		if s.findByNameLocked(name) == nil {
			return name
		}
	}
}

func (s *Store) findByNameLocked(name string) *Object {
	for _, o := range s.objects {
		if strings.EqualFold(o.Name, name) {
			return o
		}
	}
	return nil
}

func (s *Store) indexLocked(ref string) int {
	for i, o := range s.objects {
		if o.ID == ref {
			return i
		}
	}
	for i, o := range s.objects {
		if strings.EqualFold(o.Name, ref) {
			return i
		}
	}
	return -1
}

// Get returns the object whose ID or name (case-insensitive) is ref.
func (s *Store) Get(ref string) (Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexLocked(ref)
	if i < 0 {
		return Object{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return *s.objects[i], nil
}

// List returns every object in creation order. If path is not empty only
// objects placed on that image are returned.
func (s *Store) List(path string) []Object {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Object, 0, len(s.objects))
	for _, o := range s.objects {
		if path == "" || o.Path == path {
			out = append(out, *o)
		}
	}
	return out
}

// Rename changes the name of the object identified by ref.
func (s *Store) Rename(ref, name string) (Object, error) {
	if name == "" {
		return Object{}, errors.New("name must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(ref)
	if i < 0 {
		return Object{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	if other := s.findByNameLocked(name); other != nil && other != s.objects[i] {
		return Object{}, fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}
	s.objects[i].Name = name
	return *s.objects[i], nil
}

// Remove deletes the object identified by ref.
func (s *Store) Remove(ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(ref)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	s.objects = slices.Delete(s.objects, i, i+1)
	return nil
}

// Clear removes every object and resets the default name counters.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects = nil
	s.counter = make(map[Kind]int)
}

// Len reports the number of stored objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
