package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"

	"github.com/unapproachable/fairgame-fork/pkg/models"
)

// ShippingCost reads the shipping charge from one offer container. Every
// shape it does not recognize is treated as free and logged; it never fails.
func (e *Extractor) ShippingCost(s *goquery.Selection) models.Money {
	if node := s.Find(e.sel.UnifiedDelivery).First(); node.Length() > 0 {
		text := strings.TrimSpace(ownText(node))
		if text == "" {
			text = strings.TrimSpace(node.Text())
		}
		if text != "" {
			if e.isFree(text) {
				log.Debug().Str("message", text).Msg("Assuming free shipping from delivery message")
				return models.Money{}
			}
			if m, ok := models.ParseMoney(text); ok && m.Currency != "" {
				log.Debug().Str("currency", m.Currency).Float64("amount", m.Amount).Msg("Parsed shipping from delivery message")
				return m
			}
		}
	}
	return e.altShippingCost(s)
}

func (e *Extractor) altShippingCost(s *goquery.Selection) models.Money {
	nodes := s.Find(e.sel.ShippingFee).Next()
	switch nodes.Length() {
	case 0:
		log.Warn().Msg("No shipping nodes found, assuming zero")
		return models.Money{}
	case 1:
	default:
		log.Warn().Int("count", nodes.Length()).Msg("Found multiple shipping nodes, using the first")
	}

	node := nodes.First()
	text := strings.TrimSpace(ownText(node))

	switch goquery.NodeName(node) {
	case "div":
		var found *models.Money
		node.Find("span").EachWithBreak(func(_ int, span *goquery.Selection) bool {
			t := strings.TrimSpace(ownText(span))
			if t == "" || t == "+" {
				return true
			}
			if m, ok := models.ParseMoney(t); ok && m.Currency != "" {
				found = &m
				return false
			}
			return true
		})
		if found != nil {
			return *found
		}
		if text == "" {
			log.Debug().Msg("Empty shipping div, assuming zero")
		} else {
			log.Warn().Str("text", text).Msg("Unrecognized shipping div, assuming zero")
		}

	case "span":
		spans := node.ChildrenFiltered("span")
		bolds := node.ChildrenFiltered("b")
		icons := node.Find("i[aria-label]")
		switch {
		case spans.Length() > 0:
			first := strings.TrimSpace(ownText(spans.First()))
			if first == "&" {
				log.Debug().Msg("Found '& Free', assuming zero")
			} else if strings.HasPrefix(first, "+") {
				if m, ok := models.ParseMoney(first); ok {
					return m
				}
				log.Warn().Str("text", first).Msg("Could not parse shipping charge, assuming zero")
			}
		case bolds.Length() > 0:
			bolds.Each(func(_ int, b *goquery.Selection) {
				msg := strings.TrimSpace(b.Text())
				if e.isFree(msg) {
					log.Debug().Str("message", msg).Msg("Found free shipping message")
				} else {
					log.Warn().Str("message", strings.ToUpper(msg)).Msg("Unrecognized shipping message, assuming zero")
				}
			})
		case icons.Length() > 0:
			if label, _ := icons.First().Attr("aria-label"); strings.Contains(strings.ToUpper(label), "FREE") {
				log.Debug().Msg("Found free shipping with Prime")
			}
		case text != "" && e.isFree(text):
			log.Warn().Str("message", text).Msg("Assuming free shipping from message")
		default:
			log.Warn().Str("text", text).Msg("Unable to locate shipping price, assuming zero")
		}

	default:
		log.Warn().Str("tag", goquery.NodeName(node)).Msg("Unexpected shipping node, assuming zero")
	}
	return models.Money{}
}

// isFree reports whether text, ignoring case and repeated whitespace, is
// part of one of the configured free-shipping phrases. Blank phrases never
// match.
func (e *Extractor) isFree(text string) bool {
	upper := strings.ToUpper(strings.Join(strings.Fields(text), " "))
	if upper == "" {
		return false
	}
	for _, phrase := range e.freeShipping {
		p := strings.ToUpper(strings.Join(strings.Fields(phrase), " "))
		if p != "" && strings.Contains(p, upper) {
			return true
		}
	}
	return false
}

// ownText returns the text nodes directly under the selection's first
// element, skipping descendants.
func ownText(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	var b strings.Builder
	for c := s.Nodes[0].FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}
