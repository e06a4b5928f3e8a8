package discovery

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// DefaultKeywords are the preset keyword groups. Each entry is one nearby
// search keyword expression with alternatives separated by "|".
var DefaultKeywords = []string{
	"cafe|food|meal|coffee|breakfast",
	"jewelry|gift_shop|pawnshop",
	"fashion|clothes|designer|tailor",
	"pharmacy|medicine|vacination",
	"beauty|salon|spa|health",
	"bakery|cake|wedding|party",
}

// KeywordFile is the YAML layout for keyword presets:
//
//	keywords:
//	  food: [cafe, food, meal]
//	  retail: [jewelry, gift_shop]
type KeywordFile struct {
	Keywords map[string][]string `yaml:"keywords"`
	Order    []string            `yaml:"order,omitempty"`
}

// LoadKeywords reads keyword groups from a YAML file and joins each group's
// terms with "|". Groups follow the file's "order" list when present,
// otherwise the order they appear in the document.
func LoadKeywords(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "discovery: read keywords %s", path)
	}
	return ParseKeywords(data)
}

// ParseKeywords parses keyword YAML as described on KeywordFile.
func ParseKeywords(data []byte) ([]string, error) {
	var kf KeywordFile
	if err := yaml.Unmarshal(data, &kf); err != nil {
		return nil, eris.Wrap(err, "discovery: parse keywords")
	}

	order := kf.Order
	if len(order) == 0 {
		// Map iteration is random; recover document order from the node tree.
		var doc struct {
			Keywords yaml.Node `yaml:"keywords"`
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, eris.Wrap(err, "discovery: parse keywords")
		}
		for i := 0; i+1 < len(doc.Keywords.Content); i += 2 {
			order = append(order, doc.Keywords.Content[i].Value)
		}
	}

	var out []string
	for _, name := range order {
		terms, ok := kf.Keywords[name]
		if !ok {
			return nil, eris.Errorf("discovery: keyword group %q not defined", name)
		}
		var clean []string
		for _, t := range terms {
			if t = strings.TrimSpace(t); t != "" {
				clean = append(clean, t)
			}
		}
		if len(clean) > 0 {
			out = append(out, strings.Join(clean, "|"))
		}
	}
	if len(out) == 0 {
		return nil, eris.New("discovery: no keywords defined")
	}
	return out, nil
}
