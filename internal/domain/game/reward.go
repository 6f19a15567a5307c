package game

// hpRewards maps a problem's declared optimal complexity to the HP a correct
// solution restores.
var hpRewards = map[string]int{
	"O(1)":       25,
	"O(log n)":   20,
	"O(n)":       15,
	"O(n log n)": 10,
	"O(n^2)":     5,
	"O(n^3)":     2,
}

const defaultReward = 5

// HPReward returns the heal for solving a problem of the given complexity.
func HPReward(complexity string) int {
	if r, ok := hpRewards[complexity]; ok {
		return r
	}
	return defaultReward
}
