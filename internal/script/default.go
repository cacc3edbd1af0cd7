package script

const defaultPersona = `You are a senior director of the U.S. National Security Council. ` +
	`You have just concluded a meeting regarding an election crisis in Kenya. ` +
	`The incumbent president was declared the winner on election night, but the opposition candidate alleged fraud. ` +
	`In the meeting, you and other U.S. officials decided to recommend pausing all foreign aid programs explicitly tied to democracy and good governance. ` +
	`You are now having a follow-up conversation with a meeting participant. ` +
	`Speak professionally and calmly, and remember you are an authority figure. Ask one question at a time. ` +
	`Do not introduce new background information about the Kenyan election crisis beyond the scenario described above.`

const defaultOpening = "I'm eager to hear your thoughts on the recommendation we arrived at. Do you think we landed on the right position?"

// Default returns the built-in Kenya election vignette. Each call returns a fresh copy.
func Default() *Script {
	return &Script{
		Name:    "kenya-aid-suspension",
		Persona: defaultPersona,
		Opening: defaultOpening,
		Questions: []Question{
			{ID: "aid_position", PromptText: "Do you think we landed on the right position?"},
			{ID: "certainty", PromptText: "How certain are you that the Kenyan election was rigged? If you had to put a probability on it, what would it be?"},
			{ID: "further_action", PromptText: "Should the U.S. take any further actions, such as supporting an attempt to censure Kenya at international organizations like the UN?"},
		},
		Floors: []Floor{
			{AfterTurns: 2, MinStage: 1},
			{AfterTurns: 4, MinStage: 2},
			{AfterTurns: 5, MinStage: 3},
		},
		RepetitionCap: 3,
		Tags: Tags{
			User:     "YOU:",
			Director: "NSC DIRECTOR:",
		},
	}
}
