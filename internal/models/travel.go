package models

// FlightOption is one bookable option returned by the flight search tool. An option is made of
// one or more legs flown in order.
type FlightOption struct {
	Flights         []Flight        `json:"flights"`
	TotalDuration   int             `json:"total_duration"`
	CarbonEmissions CarbonEmissions `json:"carbon_emissions"`
	Price           float64         `json:"price"`
	Type            string          `json:"type"`
	AirlineLogo     string          `json:"airline_logo"`
	Extensions      []string        `json:"extensions,omitempty"`
}

// Flight is a single leg of a FlightOption. Durations are in minutes.
type Flight struct {
	DepartureAirport Airport  `json:"departure_airport"`
	ArrivalAirport   Airport  `json:"arrival_airport"`
	Duration         int      `json:"duration"`
	Airplane         string   `json:"airplane"`
	Airline          string   `json:"airline"`
	AirlineLogo      string   `json:"airline_logo"`
	TravelClass      string   `json:"travel_class"`
	FlightNumber     string   `json:"flight_number"`
	Legroom          string   `json:"legroom"`
	Extensions       []string `json:"extensions,omitempty"`
}

// Airport identifies an airport by name and IATA code, with the local time of the event at it.
type Airport struct {
	Name string `json:"name"`
	ID   string `json:"id"`
	Time string `json:"time"`
}

// CarbonEmissions are grams of CO2 for the option compared with the route's typical value.
type CarbonEmissions struct {
	ThisFlight          int `json:"this_flight"`
	TypicalForThisRoute int `json:"typical_for_this_route"`
	DifferencePercent   int `json:"difference_percent"`
}

// Itinerary is a day-by-day plan for a trip to Location.
type Itinerary struct {
	Location string    `json:"location"`
	Days     []DayPlan `json:"days"`
}

// DayPlan holds the activities planned for Date, in chronological order.
type DayPlan struct {
	Date       string     `json:"date"`
	Activities []Activity `json:"activities"`
}

// Activity is one entry of a DayPlan.
type Activity struct {
	Time        string `json:"time"`
	Title       string `json:"title"`
	Description string `json:"description"`
}
