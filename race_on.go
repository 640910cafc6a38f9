//go:build race

package stable

const raceEnabled = true
