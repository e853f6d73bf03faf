package chains

// DefaultKnownChains is the London burger chain list. Order matters: the
// first entry contained in a name wins.
func DefaultKnownChains() []string {
	return []string{
		"Five Guys",
		"Shake Shack",
		"Honest Burgers",
		"Byron",
		"Patty & Bun",
		"GBK",
		"Gourmet Burger Kitchen",
		"MEATliquor",
		"Bleecker",
		"Black Bear Burger",
		"Burger & Lobster",
		"Dirty Burger",
		"Tommi's Burger Joint",
		"Lucky Chip",
		"Haché",
		"Meat Market",
	}
}

// DefaultNeighbourhoods lists London areas that commonly trail a branch name.
func DefaultNeighbourhoods() []string {
	return []string{
		"Angel", "Balham", "Bank", "Battersea", "Bermondsey", "Bloomsbury",
		"Borough", "Brixton", "Camden", "Canary Wharf", "Chelsea", "Chinatown",
		"Chiswick", "Clapham", "Clerkenwell", "Covent Garden", "Crouch End",
		"Dalston", "Ealing", "Farringdon", "Fitzrovia", "Fulham", "Greenwich",
		"Hackney", "Hammersmith", "Highbury", "Holborn", "Islington",
		"Kensington", "King's Cross", "Kings Cross", "Leicester Square",
		"Liverpool Street", "London Bridge", "Marylebone", "Mayfair",
		"Notting Hill", "Old Street", "Oxford Circus", "Paddington", "Peckham",
		"Piccadilly", "Putney", "Richmond", "Shoreditch", "Soho",
		"South Kensington", "Southbank", "Spitalfields", "Stoke Newington",
		"Stratford", "Tooting", "Victoria", "Walthamstow", "Waterloo",
		"Wembley", "White City", "Wimbledon",
	}
}

// DefaultConfig is the London burger corpus configuration.
func DefaultConfig() Config {
	return Config{
		KnownChains:       DefaultKnownChains(),
		Neighbourhoods:    DefaultNeighbourhoods(),
		RatingSourceTag:   "google",
		SourceRatingScale: 5,
	}
}
