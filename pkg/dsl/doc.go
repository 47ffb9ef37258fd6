/*
Package dsl provides a fluent Go builder for Parley flow graphs.

It is the programmatic counterpart of the JSON/YAML flow documents produced
by the visual editor, handy for tests, examples and generated bots.

Example usage:

	b := dsl.New("pizza-bot", "Pizza")

	b.Add("start").Trigger().Go("hello")
	b.Add("hello").Message("Hi!").Go("ask")
	b.Add("ask").
		Question("Pizza or burger?", dsl.Opt("yes", "Pizza"), dsl.Opt("no", "Burger")).
		Branch("yes", "pizza").
		Branch("no", "burger")
	b.Add("pizza").Message("Great choice.").Go("bye")
	b.Add("burger").Message("Also fine.").Go("bye")
	b.Add("bye").End()

	flow, err := b.Build() // validated, ready for a FlowRepository
*/
package dsl
