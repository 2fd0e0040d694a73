package extract

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// DefaultTaxonomy is the directory's category list. Order matters for
// substring matching: Online Retail must be tried before Retail.
var DefaultTaxonomy = []string{
	"Restaurants, Eateries and Caterers",
	"Professional Services",
	"Beauty and Barber",
	"Health and Fitness",
	"Construction and Home Improvement",
	"Photography & Videography",
	"Online Retail",
	"Retail",
	"Night Clubs and Entertainment",
	"Supplies and Services",
	"Event Planners and Venues",
	"Daycare/Preschool",
	"Education",
	"Automotive",
	"Real Estate",
	"Financial Services",
	"Legal Services",
	"Medical Services",
	"Technology",
	"Arts and Entertainment",
	"Other",
}

type taxonomyFile struct {
	Categories []string `yaml:"categories"`
}

// LoadTaxonomy reads a category list override from a yaml file of the
// shape:
//
//	categories:
//	  - Restaurants
//	  - Retail
func LoadTaxonomy(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read taxonomy %s", path)
	}

	var tf taxonomyFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, eris.Wrapf(err, "extract: parse taxonomy %s", path)
	}
	if len(tf.Categories) == 0 {
		return nil, eris.Errorf("extract: taxonomy %s lists no categories", path)
	}
	return tf.Categories, nil
}
