package api

// cacheControl is the Cache-Control directive sent with successful responses,
// by route. Routes not listed send no directive; neither do failures.
var cacheControl = map[string]string{
	routeNode: "public, max-age=600, must-revalidate",
}

// cacheDirective returns the directive for route, if any.
func cacheDirective(route string) (string, bool) {
	d, ok := cacheControl[route]
	return d, ok
}
