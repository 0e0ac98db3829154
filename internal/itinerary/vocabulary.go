package itinerary

import "strings"

type hint[T any] struct {
	needle string
	value  T
}

// Order matters: the first matching needle wins.
var activityHints = []hint[ActivityType]{
	{"theat", ActivityCulture},
	{"museum", ActivityCulture},
	{"galler", ActivityCulture},
	{"histor", ActivityCulture},
	{"heritage", ActivityCulture},
	{"temple", ActivityCulture},
	{"church", ActivityCulture},
	{"cathedral", ActivityCulture},
	{"cultur", ActivityCulture},
	{"art", ActivityCulture},
	{"barbecue", ActivityFood},
	{"food", ActivityFood},
	{"cuisine", ActivityFood},
	{"culinar", ActivityFood},
	{"restaurant", ActivityFood},
	{"dining", ActivityFood},
	{"tasting", ActivityFood},
	{"wine", ActivityFood},
	{"cafe", ActivityFood},
	{"market", ActivityFood},
	{"eat", ActivityFood},
	{"nature", ActivityNature},
	{"park", ActivityNature},
	{"garden", ActivityNature},
	{"beach", ActivityNature},
	{"hik", ActivityNature},
	{"mountain", ActivityNature},
	{"outdoor", ActivityNature},
	{"wildlife", ActivityNature},
	{"adventur", ActivityAdventure},
	{"sport", ActivityAdventure},
	{"surf", ActivityAdventure},
	{"kayak", ActivityAdventure},
	{"climb", ActivityAdventure},
	{"diving", ActivityAdventure},
	{"snorkel", ActivityAdventure},
	{"shop", ActivityShopping},
	{"boutique", ActivityShopping},
	{"mall", ActivityShopping},
	{"souvenir", ActivityShopping},
	{"night", ActivityNightlife},
	{"club", ActivityNightlife},
	{"bar", ActivityNightlife},
	{"pub", ActivityNightlife},
	{"relax", ActivityRelaxation},
	{"spa", ActivityRelaxation},
	{"wellness", ActivityRelaxation},
	{"leisure", ActivityRelaxation},
	{"sightsee", ActivitySightseeing},
	{"landmark", ActivitySightseeing},
	{"monument", ActivitySightseeing},
	{"viewpoint", ActivitySightseeing},
	{"tour", ActivitySightseeing},
	{"sight", ActivitySightseeing},
	{"view", ActivitySightseeing},
}

var transportHints = []hint[TransportMode]{
	{"plane", TransportPlane},
	{"flight", TransportPlane},
	{"fly", TransportPlane},
	{"air", TransportPlane},
	{"train", TransportTrain},
	{"rail", TransportTrain},
	{"metro", TransportTrain},
	{"subway", TransportTrain},
	{"tram", TransportTrain},
	{"bus", TransportBus},
	{"coach", TransportBus},
	{"shuttle", TransportBus},
	{"ferry", TransportFerry},
	{"boat", TransportFerry},
	{"ship", TransportFerry},
	{"cruise", TransportFerry},
	{"bike", TransportBike},
	{"bicycl", TransportBike},
	{"cycl", TransportBike},
	{"walk", TransportWalk},
	{"foot", TransportWalk},
	{"car", TransportCar},
	{"driv", TransportCar},
	{"taxi", TransportCar},
	{"rental", TransportCar},
	{"road", TransportCar},
}

// MapActivityType maps a free-text activity type onto the vocabulary.
func MapActivityType(raw string) (ActivityType, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	for _, t := range ActivityTypes {
		if s == string(t) {
			return t, true
		}
	}
	return lookupHint(s, activityHints)
}

// MapTransportMode maps a free-text transport mode onto the enum.
func MapTransportMode(raw string) (TransportMode, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	for _, m := range TransportModes {
		if s == string(m) {
			return m, true
		}
	}
	return lookupHint(s, transportHints)
}

func lookupHint[T any](s string, hints []hint[T]) (T, bool) {
	var zero T
	if s == "" {
		return zero, false
	}
	for _, h := range hints {
		if strings.Contains(s, h.needle) {
			return h.value, true
		}
	}
	return zero, false
}
