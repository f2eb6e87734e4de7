package game

// Words is the pool the secret word is drawn from. Concrete, guessable
// nouns work best for the chat rounds.
var Words = []string{
	"pizza", "guitar", "elephant", "rainbow", "computer", "butterfly",
	"mountain", "chocolate", "dinosaur", "telescope", "watermelon", "astronaut",
	"volcano", "penguin", "lighthouse", "saxophone", "hamburger", "kangaroo",
	"submarine", "fireworks", "pineapple", "helicopter", "crocodile", "basketball",
}
