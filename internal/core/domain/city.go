package domain

// City is a location the provider is queried for. Name is the provider's
// query form (e.g. "Saint_Petersburg"), ID is the warehouse city_id.
type City struct {
	Name string `yaml:"name" json:"name" validate:"required"`
	ID   int64  `yaml:"id" json:"id" validate:"required,gt=0"`
}

// DefaultCities are loaded when the configuration lists none.
var DefaultCities = []City{
	{Name: "Moscow", ID: 102},
	{Name: "Saint_Petersburg", ID: 104},
}
