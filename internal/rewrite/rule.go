package rewrite

import (
	"fmt"
	"net/url"
	"strings"
)

// Phase controls when a rule is evaluated relative to the gateway's own routing.
type Phase string

const (
	// PhaseBeforeRouting rules run ahead of the gateway mux and take
	// precedence over any route also matching the path.
	PhaseBeforeRouting Phase = "before-routing"
	// PhaseAfterRouting rules run only when the gateway mux has no route
	// for the path.
	PhaseAfterRouting Phase = "after-routing"
)

// segment is one parsed element of a source pattern or destination template.
// Exactly one of literal/capture is set; rest marks a ":name*" capture.
type segment struct {
	literal string
	capture string
	rest    bool
}

// Rule is a compiled rewrite rule: a source path pattern, a destination
// origin plus path template, and the phase it applies in. Rules are
// immutable after compilation.
type Rule struct {
	source      string
	destination string
	phase       Phase
	srcSegments []segment
	dstSegments []segment
	origin      *url.URL
}

// Target is the result of matching a rule against a request path: the
// upstream origin to forward to and the fully expanded destination path.
type Target struct {
	Rule   *Rule
	Origin *url.URL
	Path   string
}

// CompileRule parses and validates a source pattern and destination template.
// The source must be a rooted path; captures are written ":name" for a single
// segment and ":name*" for the remaining segments, where ":name*" may only
// appear last. The destination must be an absolute http or https URL whose
// path template references only captures defined by the source.
func CompileRule(source, destination string, phase Phase) (*Rule, error) {
	if phase == "" {
		phase = PhaseBeforeRouting
	}
	if phase != PhaseBeforeRouting && phase != PhaseAfterRouting {
		return nil, fmt.Errorf("rewrite rule %q: unknown phase %q", source, phase)
	}

	srcSegments, captures, err := parsePattern(source)
	if err != nil {
		return nil, fmt.Errorf("rewrite rule %q: %w", source, err)
	}

	origin, dstSegments, err := parseDestination(destination, captures)
	if err != nil {
		return nil, fmt.Errorf("rewrite rule %q: %w", source, err)
	}

	return &Rule{
		source:      source,
		destination: destination,
		phase:       phase,
		srcSegments: srcSegments,
		dstSegments: dstSegments,
		origin:      origin,
	}, nil
}

func parsePattern(source string) ([]segment, map[string]bool, error) {
	if !strings.HasPrefix(source, "/") {
		return nil, nil, fmt.Errorf("source must start with '/'")
	}

	parts := splitPath(source)
	segments := make([]segment, 0, len(parts))
	captures := make(map[string]bool)

	for i, part := range parts {
		if !strings.HasPrefix(part, ":") {
			segments = append(segments, segment{literal: part})
			continue
		}

		name := strings.TrimPrefix(part, ":")
		rest := strings.HasSuffix(name, "*")
		if rest {
			name = strings.TrimSuffix(name, "*")
			if i != len(parts)-1 {
				return nil, nil, fmt.Errorf("capture :%s* must be the final segment", name)
			}
		}
		if name == "" {
			return nil, nil, fmt.Errorf("capture segment is missing a name")
		}
		if captures[name] {
			return nil, nil, fmt.Errorf("duplicate capture name %q", name)
		}

		captures[name] = true
		segments = append(segments, segment{capture: name, rest: rest})
	}

	return segments, captures, nil
}

func parseDestination(destination string, captures map[string]bool) (*url.URL, []segment, error) {
	u, err := url.Parse(destination)
	if err != nil {
		return nil, nil, fmt.Errorf("destination is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, nil, fmt.Errorf("destination must use http or https scheme")
	}
	if u.Host == "" {
		return nil, nil, fmt.Errorf("destination must have a host")
	}

	parts := splitPath(u.Path)
	segments := make([]segment, 0, len(parts))
	referenced := make(map[string]bool)

	for i, part := range parts {
		if !strings.HasPrefix(part, ":") {
			segments = append(segments, segment{literal: part})
			continue
		}

		name := strings.TrimPrefix(part, ":")
		rest := strings.HasSuffix(name, "*")
		if rest {
			name = strings.TrimSuffix(name, "*")
			if i != len(parts)-1 {
				return nil, nil, fmt.Errorf("capture :%s* must be the final segment of the destination", name)
			}
		}
		if !captures[name] {
			return nil, nil, fmt.Errorf("destination references undefined capture %q", name)
		}

		referenced[name] = true
		segments = append(segments, segment{capture: name, rest: rest})
	}

	for name := range captures {
		if !referenced[name] {
			return nil, nil, fmt.Errorf("destination does not reference capture %q", name)
		}
	}

	origin := &url.URL{Scheme: u.Scheme, Host: u.Host}
	return origin, segments, nil
}

// Match tests a request path against the rule. On success it returns the
// target with the destination path expanded from the captured segments.
// Captured remainders are re-joined exactly as they appeared in the request,
// so no segments are lost and no double slashes are introduced.
func (r *Rule) Match(path string) (*Target, bool) {
	if !strings.HasPrefix(path, "/") {
		return nil, false
	}

	parts := splitPath(path)
	captured := make(map[string]string)

	for i, seg := range r.srcSegments {
		if seg.rest {
			captured[seg.capture] = strings.Join(parts[i:], "/")
			return r.target(captured), true
		}
		if i >= len(parts) {
			return nil, false
		}
		if seg.capture != "" {
			if parts[i] == "" {
				return nil, false
			}
			captured[seg.capture] = parts[i]
			continue
		}
		if seg.literal != parts[i] {
			return nil, false
		}
	}

	if len(parts) != len(r.srcSegments) {
		return nil, false
	}

	return r.target(captured), true
}

func (r *Rule) target(captured map[string]string) *Target {
	var b strings.Builder

	for _, seg := range r.dstSegments {
		if seg.capture != "" {
			value := captured[seg.capture]
			if value == "" && seg.rest {
				// Empty remainder: drop the token and its preceding slash.
				continue
			}
			b.WriteByte('/')
			b.WriteString(value)
			continue
		}
		b.WriteByte('/')
		b.WriteString(seg.literal)
	}

	path := b.String()
	if path == "" {
		path = "/"
	}

	return &Target{Rule: r, Origin: r.origin, Path: path}
}

// Source returns the rule's source pattern as configured.
func (r *Rule) Source() string {
	return r.source
}

// Destination returns the rule's destination template as configured.
func (r *Rule) Destination() string {
	return r.destination
}

// Origin returns the fixed upstream origin (scheme and host) of the destination.
func (r *Rule) Origin() *url.URL {
	return r.origin
}

// Phase returns the phase the rule applies in.
func (r *Rule) Phase() Phase {
	return r.phase
}

// splitPath splits a rooted path into its segments. The root path "/" and
// the empty path yield no segments.
func splitPath(path string) []string {
	trimmed := strings.TrimPrefix(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
