// Package grid describes which slice of the distribution network a run
// aggregates: the station tier that supplies the key column, the consumer
// category and an optional power plant filter.
package grid

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidSelection is returned when a tier, consumer or plant id is rejected.
var ErrInvalidSelection = errors.New("invalid grid selection")

// Tier identifies a station category.
type Tier string

// Station tiers.
const (
	TierHVB Tier = "hvb"
	TierHVA Tier = "hva"
	TierLV  Tier = "lv"
)

// Consumer identifies the consumer category of the filtered input.
type Consumer string

// Consumer categories.
const (
	ConsumerCompany    Consumer = "comp"
	ConsumerIndividual Consumer = "indiv"
	ConsumerAll        Consumer = "all"
)

// AllPlants is the plant id meaning "no plant filter".
const AllPlants = -1

// Column layout of the filtered input files.
const (
	ColumnPlant       = 0
	ColumnHVB         = 1
	ColumnHVA         = 2
	ColumnLV          = 3
	ColumnCompany     = 4
	ColumnIndividual  = 5
	ColumnCapacity    = 6
	ColumnConsumption = 7
)

// KeyColumn returns the input column holding the station id for t.
func (t Tier) KeyColumn() int {
	switch t {
	case TierHVB:
		return ColumnHVB
	case TierHVA:
		return ColumnHVA
	default:
		return ColumnLV
	}
}

// Selection is a validated run target.
type Selection struct {
	Tier     Tier     `validate:"required,oneof=hvb hva lv"`
	Consumer Consumer `validate:"required,oneof=comp indiv all"`
	PlantID  int      `validate:"gte=-1"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// NewSelection parses and validates the three positional run arguments.
func NewSelection(tier, consumer, plant string) (Selection, error) {
	plantID, err := strconv.Atoi(strings.TrimSpace(plant))
	if err != nil {
		return Selection{}, fmt.Errorf("%w: plant id %q is not an integer", ErrInvalidSelection, plant)
	}

	sel := Selection{
		Tier:     Tier(strings.ToLower(strings.TrimSpace(tier))),
		Consumer: Consumer(strings.ToLower(strings.TrimSpace(consumer))),
		PlantID:  plantID,
	}

	err = sel.Validate()
	if err != nil {
		return Selection{}, err
	}

	return sel, nil
}

// Validate checks every field of s.
func (s Selection) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %w", ErrInvalidSelection, err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s=%v fails %s", strings.ToLower(fe.Field()), fe.Value(), fe.Tag()))
	}

	return fmt.Errorf("%w: %s", ErrInvalidSelection, strings.Join(msgs, ", "))
}

// Extremal reports whether the selection produces top and bottom reports by default.
func (s Selection) Extremal() bool {
	return s.Tier == TierLV && s.Consumer == ConsumerAll
}

func (s Selection) stem() string {
	return string(s.Tier) + "_" + string(s.Consumer)
}

// InputFile returns the filtered input path under dir.
func (s Selection) InputFile(dir string) string {
	name := "filter_" + s.stem()
	if s.PlantID != AllPlants {
		name += "_" + strconv.Itoa(s.PlantID)
	}

	return filepath.Join(dir, name+".csv")
}

// SortedFile returns the sorted report path under dir with extension ext.
func (s Selection) SortedFile(dir, ext string) string {
	return filepath.Join(dir, "sorted_"+s.stem()+ext)
}

// TopFile returns the top-limit report path under dir.
func (s Selection) TopFile(dir string, limit int) string {
	return filepath.Join(dir, "top"+strconv.Itoa(limit)+"_"+s.stem()+".csv")
}

// BottomFile returns the bottom-limit report path under dir.
func (s Selection) BottomFile(dir string, limit int) string {
	return filepath.Join(dir, "bottom"+strconv.Itoa(limit)+"_"+s.stem()+".csv")
}

// ScriptFile returns the gnuplot script path under dir.
func (s Selection) ScriptFile(dir string) string {
	return filepath.Join(dir, "plot_"+s.stem()+".gp")
}

// ImageFile returns the gnuplot image path under dir.
func (s Selection) ImageFile(dir string) string {
	return filepath.Join(dir, "chart_"+s.stem()+".png")
}

// ChartFile returns the HTML chart path under dir.
func (s Selection) ChartFile(dir string) string {
	return filepath.Join(dir, "chart_"+s.stem()+".html")
}
