// Package decoder normalizes inbound bus payloads into JSON text.
//
// Upstream producers are inconsistent: some publish the JSON document as-is,
// others publish it base64 encoded, sometimes wrapped in a JSON string. The
// decoder tries an ordered list of strategies and keeps the first one that
// yields something shaped like a JSON object. It never fails; when nothing
// matches the payload is passed through untouched and the JSON parser
// downstream gets to reject it.
package decoder

import (
	"strings"

	"github.com/cloudwego/base64x"
)

// Strategy names reported by DecodeWithInfo.
const (
	StrategyDirect      = "direct"
	StrategyBase64      = "base64"
	StrategyPassthrough = "passthrough"
)

// Strategy turns raw into JSON text, reporting false when it does not apply.
type Strategy struct {
	Name  string
	Apply func(raw string) (string, bool)
}

// Result is the outcome of a decode.
type Result struct {
	Payload  string
	Strategy string
}

// Direct accepts payloads that already look like a JSON object.
var Direct = Strategy{
	Name: StrategyDirect,
	Apply: func(raw string) (string, bool) {
		return raw, looksLikeObject(raw)
	},
}

// Base64 strips one pair of surrounding double quotes, then decodes with the
// standard padded alphabet.
var Base64 = Strategy{
	Name: StrategyBase64,
	Apply: func(raw string) (string, bool) {
		candidate := raw
		if len(candidate) >= 2 && strings.HasPrefix(candidate, `"`) && strings.HasSuffix(candidate, `"`) {
			candidate = candidate[1 : len(candidate)-1]
		}
		if candidate == "" {
			return "", false
		}
		decoded, err := base64x.StdEncoding.DecodeString(candidate)
		if err != nil {
			return "", false
		}
		text := string(decoded)
		return text, looksLikeObject(text)
	},
}

// DefaultStrategies is the order used by Decode.
var DefaultStrategies = []Strategy{Direct, Base64}

// Decoder runs its strategies in order.
type Decoder struct {
	strategies []Strategy
}

// New builds a decoder. Without strategies it uses DefaultStrategies.
func New(strategies ...Strategy) *Decoder {
	if len(strategies) == 0 {
		strategies = DefaultStrategies
	}
	return &Decoder{strategies: append([]Strategy(nil), strategies...)}
}

// DecodeWithInfo returns the payload of the first matching strategy.
func (d *Decoder) DecodeWithInfo(raw string) Result {
	for _, s := range d.strategies {
		if out, ok := s.Apply(raw); ok {
			return Result{Payload: out, Strategy: s.Name}
		}
	}
	return Result{Payload: raw, Strategy: StrategyPassthrough}
}

// Decode returns only the payload.
func (d *Decoder) Decode(raw string) string {
	return d.DecodeWithInfo(raw).Payload
}

var defaultDecoder = New()

// Decode normalizes raw with the default strategies.
func Decode(raw string) string {
	return defaultDecoder.Decode(raw)
}

// DecodeWithInfo normalizes raw with the default strategies and reports which
// one matched.
func DecodeWithInfo(raw string) Result {
	return defaultDecoder.DecodeWithInfo(raw)
}

func looksLikeObject(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "{")
}
