package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/titanous/json5"

	"github.com/unapproachable/fairgame-fork/internal/engine"
	"github.com/unapproachable/fairgame-fork/pkg/models"
)

// ItemConfig is the parsed hunt list.
type ItemConfig struct {
	Domain string
	Items  []models.TrackedItem
	// Skipped counts entries dropped for being invalid.
	Skipped int
}

// LocalOverlayPath returns the path of the optional overlay merged on top
// of path: amazon_config.json -> amazon_config.local.json.
func LocalOverlayPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

// LoadItems reads the item config at path, merges the local overlay when
// present and builds the tracked items. Items without a condition get
// defaultCondition. Invalid entries are logged and skipped; a missing file
// or an empty result is a configuration error.
func LoadItems(path string, defaultCondition models.Condition) (*ItemConfig, error) {
	raw, err := readJSON5(path)
	if err != nil {
		return nil, engine.ConfigError("item config "+path, err)
	}

	overlay := LocalOverlayPath(path)
	if _, statErr := os.Stat(overlay); statErr == nil {
		local, err := readJSON5(overlay)
		if err != nil {
			return nil, engine.ConfigError("item config overlay "+overlay, err)
		}
		if err := mergo.Merge(&raw, local, mergo.WithOverride); err != nil {
			return nil, engine.ConfigError("merge item config overlay", err)
		}
		log.Debug().Str("path", overlay).Msg("Merged local item config")
	}

	return ParseItems(raw, defaultCondition)
}

// ParseItems builds the hunt list from a decoded item config document.
func ParseItems(raw map[string]any, defaultCondition models.Condition) (*ItemConfig, error) {
	cfg := &ItemConfig{Domain: firstString(raw, "amazon_website", "amazon_domain")}

	list, ok := firstList(raw, "items", "itemList")
	if !ok || len(list) == 0 {
		return nil, engine.ConfigError("no entries found in items; each entry needs asins, min and max", nil)
	}

	for i, entry := range list {
		items, err := parseEntry(entry, defaultCondition)
		if err != nil {
			cfg.Skipped++
			log.Warn().Err(err).Int("entry", i+1).Msg("Skipping item config entry")
			continue
		}
		cfg.Items = append(cfg.Items, items...)
	}
	if len(cfg.Items) == 0 {
		return nil, engine.ConfigError(fmt.Sprintf("all %d item entries are invalid", len(list)), nil)
	}
	return cfg, nil
}

func parseEntry(entry any, defaultCondition models.Condition) ([]models.TrackedItem, error) {
	m, ok := entry.(map[string]any)
	if !ok {
		return nil, errors.New("entry is not an object")
	}

	ids, err := parseIDs(m["asins"])
	if err != nil {
		return nil, err
	}

	minPrice, hasMin, err := priceField(m, "min", "min-price")
	if err != nil {
		return nil, err
	}
	maxPrice, hasMax, err := priceField(m, "max", "max-price")
	if err != nil {
		return nil, err
	}
	if !hasMin && !hasMax {
		return nil, errors.New("missing min and max")
	}
	if !hasMax {
		maxPrice = minPrice
	}
	if minPrice > maxPrice {
		return nil, fmt.Errorf("minimum price must be <= maximum price: %.2f > %.2f", minPrice, maxPrice)
	}

	cond := defaultCondition
	if label := firstString(m, "condition"); label != "" {
		if cond, err = models.ParseCondition(label); err != nil {
			return nil, err
		}
	}

	group := firstString(m, "group")
	if group == "" {
		group = uuid.NewString()
	}

	items := make([]models.TrackedItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, models.TrackedItem{
			ID:        id,
			GroupID:   group,
			MinPrice:  minPrice,
			MaxPrice:  maxPrice,
			Condition: cond,
		})
	}
	return items, nil
}

// parseIDs accepts an array of strings or a comma separated string.
func parseIDs(v any) ([]string, error) {
	var parts []string
	switch t := v.(type) {
	case string:
		parts = strings.Split(t, ",")
	case []any:
		for _, x := range t {
			s, ok := x.(string)
			if !ok {
				return nil, fmt.Errorf("asin %v is not a string", x)
			}
			parts = append(parts, s)
		}
	case nil:
		return nil, errors.New("missing asins")
	default:
		return nil, fmt.Errorf("asins has unsupported type %T", v)
	}

	var ids []string
	for _, p := range parts {
		if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
			ids = append(ids, p)
		}
	}
	if len(ids) == 0 {
		return nil, errors.New("asins is empty")
	}
	return ids, nil
}

func priceField(m map[string]any, keys ...string) (float64, bool, error) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		p, err := parsePrice(v)
		if err != nil {
			return 0, false, fmt.Errorf("%s: %w", k, err)
		}
		return p, true, nil
	}
	return 0, false, nil
}

// parsePrice accepts a number or a price string such as "$1,299.99".
func parsePrice(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case string:
		m, ok := models.ParseMoney(t)
		if !ok || strings.Contains(t, "-") {
			return 0, fmt.Errorf("unparseable price %q", t)
		}
		return m.Amount, nil
	default:
		return 0, fmt.Errorf("unsupported price type %T", v)
	}
}

func readJSON5(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json5.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return out, nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func firstList(m map[string]any, keys ...string) ([]any, bool) {
	for _, k := range keys {
		if l, ok := m[k].([]any); ok {
			return l, true
		}
	}
	return nil, false
}
