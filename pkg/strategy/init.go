package strategy

// init registers the built-in variants on package load.
func init() {
	RegisterAll([]*Definition{
		regimeAdaptive(),
		fixedThreshold(),
		emaCrossover(),
	})
}
