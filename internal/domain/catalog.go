package domain

import "math/rand"

// Rand is the source of randomness for shuffles and player picks.
// *rand.Rand satisfies it but is not safe for concurrent use; callers that
// share one across goroutines must serialize access. Tests inject seeded sources.
type Rand interface {
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

type globalRand struct{}

func (globalRand) Intn(n int) int                     { return rand.Intn(n) }
func (globalRand) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

// DefaultRand draws from the shared math/rand source and is safe for concurrent use.
var DefaultRand Rand = globalRand{}

// PromptCatalog is the built-in deck for every non-custom category
var PromptCatalog = map[Category][]string{
	CategoryConfessions: {
		"What is the most embarrassing thing you have ever googled?",
		"Confess the last lie you told someone in this room.",
		"What is a secret you kept from your parents for years?",
		"Who was your most regrettable crush?",
		"What is the pettiest thing you have ever done?",
		"Which text would you never want anyone here to read?",
		"What is something you pretend to like but secretly hate?",
		"What is the worst gift you ever re-gifted?",
		"Confess a habit you hide from everyone.",
		"What is the strangest thing you have done when home alone?",
	},
	CategoryDare: {
		"Let the group post one story from your phone.",
		"Do your best impression of someone in this room.",
		"Send a voice note singing to the third person in your contacts.",
		"Speak in an accent until your next turn.",
		"Show the last photo in your camera roll.",
		"Let someone else write your next status.",
		"Do ten squats while reciting the alphabet.",
		"Call a friend and tell them a made-up piece of gossip.",
		"Dance with no music for thirty seconds.",
		"Read your last sent message out loud.",
	},
	CategoryToxic: {
		"Who here would you never trust with a secret?",
		"Which ex still lives rent-free in your head?",
		"Who in this room is the worst texter?",
		"What is the most toxic thing you have done in a relationship?",
		"Whose partner would you never date?",
		"Who is most likely to ghost someone?",
		"What is the worst thing you have said behind someone's back?",
		"Which friend do you secretly compete with?",
		"Who here is the biggest drama starter?",
		"Which red flag do you ignore every time?",
	},
	CategoryChill: {
		"What is your comfort movie?",
		"Describe your perfect lazy Sunday.",
		"What song always puts you in a good mood?",
		"Where would you go on a dream trip?",
		"What is a small thing that made you happy this week?",
		"What is your go-to snack?",
		"Which show could you rewatch forever?",
		"What is a skill you would love to learn?",
		"What did you want to be when you grew up?",
		"What is your favorite memory with this group?",
	},
	CategoryWhosMoreLikely: {
		"Who is most likely to become famous?",
		"Who is most likely to cry at a movie?",
		"Who is most likely to forget a birthday?",
		"Who is most likely to get lost on vacation?",
		"Who is most likely to text their ex tonight?",
		"Who is most likely to adopt ten cats?",
		"Who is most likely to win a reality show?",
		"Who is most likely to start a business?",
		"Who is most likely to be late to their own wedding?",
		"Who is most likely to fall asleep first tonight?",
	},
}

// CategoryPrompts returns a freshly shuffled copy of the deck for the category.
// Custom categories have no deck and return an empty slice.
func CategoryPrompts(c Category, rng Rand) []string {
	deck := PromptCatalog[c]
	prompts := make([]string, len(deck))
	copy(prompts, deck)
	if rng == nil {
		rng = DefaultRand
	}
	rng.Shuffle(len(prompts), func(i, j int) {
		prompts[i], prompts[j] = prompts[j], prompts[i]
	})
	return prompts
}
