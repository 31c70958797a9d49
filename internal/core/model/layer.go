package model

import "fmt"

// Layer is the visibility tier attached to stored content. The three tiers
// form a strict containment order: an intimate-level request may read
// everything, a public-level request only public content.
type Layer string

const (
	LayerPublic   Layer = "public"
	LayerFriends  Layer = "friends"
	LayerIntimate Layer = "intimate"
)

var layerRank = map[Layer]int{
	LayerPublic:   0,
	LayerFriends:  1,
	LayerIntimate: 2,
}

// ParseLayer validates a wire-level layer string.
func ParseLayer(s string) (Layer, error) {
	l := Layer(s)
	if _, ok := layerRank[l]; !ok {
		return "", fmt.Errorf("unknown visibility layer: %q", s)
	}
	return l, nil
}

func (l Layer) Valid() bool {
	_, ok := layerRank[l]
	return ok
}

// Allows reports whether content stored at the given layer may be read by a
// request granted l. Unknown layers are never readable.
func (l Layer) Allows(stored Layer) bool {
	gr, ok := layerRank[l]
	if !ok {
		return false
	}
	sr, ok := layerRank[stored]
	if !ok {
		return false
	}
	return sr <= gr
}

// Visible returns the set of stored layers readable at grant l, for use as a
// query filter. The store re-applies this at every read boundary rather than
// trusting upstream state.
func (l Layer) Visible() []Layer {
	gr, ok := layerRank[l]
	if !ok {
		return nil
	}
	out := make([]Layer, 0, gr+1)
	for _, cand := range []Layer{LayerPublic, LayerFriends, LayerIntimate} {
		if layerRank[cand] <= gr {
			out = append(out, cand)
		}
	}
	return out
}

// Strings converts a layer set to raw strings for query parameters.
func Strings(layers []Layer) []string {
	out := make([]string, len(layers))
	for i, l := range layers {
		out[i] = string(l)
	}
	return out
}
