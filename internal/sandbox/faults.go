// internal/sandbox/faults.go
package sandbox

import (
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Fault is an injected failure for requests whose path starts with Target.
type Fault struct {
	Name    string
	Method  string // empty matches any method
	Target  string
	Latency time.Duration
	// Status answers the request without reaching the handler. Zero only delays it.
	Status int
	// BlastRadius is the fraction of matching requests affected, in (0, 1].
	// Zero means every request.
	BlastRadius float64
}

func (f Fault) matches(r *http.Request) bool {
	if f.Method != "" && !strings.EqualFold(f.Method, r.Method) {
		return false
	}
	return strings.HasPrefix(r.URL.Path, f.Target)
}

// FaultInjector degrades the sandbox on purpose so clients can be exercised
// against slow or failing endpoints.
type FaultInjector struct {
	mu     sync.RWMutex
	faults []Fault
	roll   func() float64
	log    *zap.Logger
}

func NewFaultInjector(log *zap.Logger, faults ...Fault) *FaultInjector {
	if log == nil {
		log = zap.NewNop()
	}
	return &FaultInjector{faults: faults, roll: rand.Float64, log: log.Named("faults")}
}

// Inject adds a fault, replacing any fault with the same name.
func (fi *FaultInjector) Inject(f Fault) {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	fi.remove(f.Name)
	fi.faults = append(fi.faults, f)
}

// Clear removes the named fault.
func (fi *FaultInjector) Clear(name string) {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	fi.remove(name)
}

// Reset removes every fault.
func (fi *FaultInjector) Reset() {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	fi.faults = nil
}

func (fi *FaultInjector) Active() []Fault {
	fi.mu.RLock()
	defer fi.mu.RUnlock()
	return append([]Fault(nil), fi.faults...)
}

// remove must be called with mu held.
func (fi *FaultInjector) remove(name string) {
	kept := fi.faults[:0]
	for _, f := range fi.faults {
		if f.Name != name {
			kept = append(kept, f)
		}
	}
	fi.faults = kept
}

func (fi *FaultInjector) pick(r *http.Request) (Fault, bool) {
	fi.mu.RLock()
	defer fi.mu.RUnlock()
	for _, f := range fi.faults {
		if !f.matches(r) {
			continue
		}
		if f.BlastRadius > 0 && f.BlastRadius < 1 && fi.roll() >= f.BlastRadius {
			continue
		}
		return f, true
	}
	return Fault{}, false
}

// Middleware applies the first matching fault to each request.
func (fi *FaultInjector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, ok := fi.pick(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		trace.SpanFromContext(r.Context()).AddEvent("fault_injected", trace.WithAttributes(
			attribute.String("fault.name", f.Name),
			attribute.Int("fault.status", f.Status),
			attribute.Int64("fault.latency_ms", f.Latency.Milliseconds()),
		))
		fi.log.Debug("fault injected", zap.String("fault", f.Name), zap.String("path", r.URL.Path))

		if f.Latency > 0 {
			select {
			case <-time.After(f.Latency):
			case <-r.Context().Done():
				return
			}
		}
		if f.Status != 0 {
			writeError(w, f.Status, "injected fault: "+f.Name)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ParseFaults reads a comma separated list of "[METHOD ]PATH=STATUS[/LATENCY][@RADIUS]"
// entries, for example "GET /api/memberships/status=503,/api/classes=0/2s@0.5".
func ParseFaults(raw string) ([]Fault, error) {
	var faults []Fault
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		f := Fault{Name: entry}

		target, effect, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("fault %q: missing =STATUS", entry)
		}
		if method, path, found := strings.Cut(strings.TrimSpace(target), " "); found {
			f.Method, f.Target = strings.ToUpper(method), strings.TrimSpace(path)
		} else {
			f.Target = strings.TrimSpace(target)
		}
		if !strings.HasPrefix(f.Target, "/") {
			return nil, fmt.Errorf("fault %q: path must start with /", entry)
		}

		effect, radius, hasRadius := strings.Cut(effect, "@")
		if hasRadius {
			r, err := strconv.ParseFloat(radius, 64)
			if err != nil || r <= 0 || r > 1 {
				return nil, fmt.Errorf("fault %q: radius must be in (0, 1]", f.Name)
			}
			f.BlastRadius = r
		}

		status, latency, hasLatency := strings.Cut(effect, "/")
		code, err := strconv.Atoi(status)
		if err != nil || (code != 0 && (code < 400 || code > 599)) {
			return nil, fmt.Errorf("fault %q: status must be 0 or an HTTP error code", f.Name)
		}
		f.Status = code
		if hasLatency {
			d, err := time.ParseDuration(latency)
			if err != nil {
				return nil, fmt.Errorf("fault %q: %w", f.Name, err)
			}
			f.Latency = d
		}
		faults = append(faults, f)
	}
	return faults, nil
}
