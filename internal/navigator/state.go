package navigator

import (
	"slices"

	"github.com/antzucaro/matchr"

	"github.com/unapproachable/fairgame-fork/internal/config"
)

// State is the kind of page the browser is showing, decided by its title.
type State int

const (
	StateUnknown State = iota
	StateSignIn
	StateCaptcha
	StateCart
	StateCheckout
	StateOrderComplete
	StatePrimeUpsell
	StateHome
	StateShippingAddress
	StateBusinessPO
	StateOutOfStock
	StateDoggo
)

var stateNames = map[State]string{
	StateUnknown:         "unknown",
	StateSignIn:          "sign-in",
	StateCaptcha:         "captcha",
	StateCart:            "cart",
	StateCheckout:        "checkout",
	StateOrderComplete:   "order-complete",
	StatePrimeUpsell:     "prime-upsell",
	StateHome:            "home",
	StateShippingAddress: "shipping-address",
	StateBusinessPO:      "business-po",
	StateOutOfStock:      "out-of-stock",
	StateDoggo:           "doggo",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// Classifier maps a page title to a State.
type Classifier interface {
	Classify(title string) State
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(title string) State

func (f ClassifierFunc) Classify(title string) State { return f(title) }

// titleOrder is the precedence used when a title appears in more than one
// set: sign-in and captcha pages are handled before anything else.
var titleOrder = []struct {
	key   string
	state State
}{
	{config.TitleSignIn, StateSignIn},
	{config.TitleCaptcha, StateCaptcha},
	{config.TitleCart, StateCart},
	{config.TitleCheckout, StateCheckout},
	{config.TitleOrderComplete, StateOrderComplete},
	{config.TitlePrimeUpsell, StatePrimeUpsell},
	{config.TitleHome, StateHome},
	{config.TitleDoggo, StateDoggo},
	{config.TitleOutOfStock, StateOutOfStock},
	{config.TitleBusinessPO, StateBusinessPO},
	{config.TitleShippingAddress, StateShippingAddress},
}

// TitleClassifier matches titles exactly against a site profile's title sets.
type TitleClassifier struct {
	states map[string]State
	known  []string
}

// NewTitleClassifier indexes the title sets of site.
func NewTitleClassifier(site config.SiteProfile) *TitleClassifier {
	c := &TitleClassifier{states: make(map[string]State)}
	for _, e := range titleOrder {
		for _, title := range site.Titles[e.key] {
			if _, dup := c.states[title]; dup {
				continue
			}
			c.states[title] = e.state
			c.known = append(c.known, title)
		}
	}
	slices.Sort(c.known)
	return c
}

func (c *TitleClassifier) Classify(title string) State {
	if s, ok := c.states[title]; ok {
		return s
	}
	return StateUnknown
}

// Nearest returns the known title most similar to title and its
// Jaro-Winkler score. It is a logging hint only.
func (c *TitleClassifier) Nearest(title string) (string, float64) {
	best, score := "", 0.0
	for _, k := range c.known {
		if s := matchr.JaroWinkler(title, k, false); s > score {
			best, score = k, s
		}
	}
	return best, score
}
