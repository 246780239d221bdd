package main

import (
	"math/rand"
	"strconv"
)

var dummyNames = []string{
	"Bot Alice",
	"Bot Bob",
	"Bot Charlie",
	"Bot Diana",
	"Bot Eddie",
	"Bot Fiona",
	"Bot George",
	"Bot Hannah",
}

var dummyAnswers = []string{
	"Grandma's secret recipe",
	"That time at the family BBQ",
	"Uncle Bob's famous dance moves",
	"The cousin nobody talks about",
	"Dad's bad jokes",
	"Mom's 'special' casserole",
	"The family dog",
	"Aunt Karen's unsolicited advice",
	"Grandpa's fishing stories",
	"The mystery meat from Thanksgiving",
	"That one vacation photo",
	"The WiFi password argument",
	"Who ate the last slice of pie",
	"The relatives who stay too long",
	"Dad falling asleep on the couch",
	"The kids table rebellion",
	"Grandma's plastic-covered furniture",
	"The annual family drama",
	"Someone's questionable life choices",
	"The casserole that never gets eaten",
}

func dummyName(index int) string {
	if len(dummyNames) == 0 {
		return "Bot " + strconv.Itoa(index+1)
	}

	return dummyNames[index%len(dummyNames)]
}

func randomDummyAnswer() string {
	return dummyAnswers[rand.Intn(len(dummyAnswers))]
}
