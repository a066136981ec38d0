package visitors

import "hash/fnv"

var aliasAdjectives = []string{
	"Curious", "Happy", "Clever", "Wise", "Playful", "Brave", "Swift", "Gentle", "Busy", "Bold",
	"Bright", "Calm", "Cheerful", "Daring", "Eager", "Friendly", "Graceful", "Jolly", "Kind", "Lively",
	"Mellow", "Nimble", "Patient", "Quiet", "Quick", "Sunny", "Tidy", "Witty", "Zesty", "Vivid",
}

var aliasAnimals = []string{
	"Panda", "Fox", "Owl", "Otter", "Lion", "Eagle", "Deer", "Raven", "Beaver", "Koala",
	"Badger", "Heron", "Lynx", "Marten", "Newt", "Orca", "Puffin", "Quokka", "Robin", "Stoat",
	"Tapir", "Walrus", "Yak", "Zebra", "Bison", "Crane", "Dingo", "Ferret", "Gecko", "Ibis",
}

// Alias returns a stable, human-friendly display name for a visitor token.
func Alias(token string) string {
	h := fnv.New32a()
	h.Write([]byte(token))
	sum := h.Sum32()
	adjectives := uint32(len(aliasAdjectives))
	animals := uint32(len(aliasAnimals))

	adj := aliasAdjectives[sum%adjectives]
	animal := aliasAnimals[(sum/adjectives)%animals]

	return adj + " " + animal
}
