package progression

const verdictSystemPrompt = `You review transcripts of a scripted research interview and decide whether one specific question has been answered.

Acceptance is lenient. Any reply that addresses the question counts as an answer, including short replies, "none", "no", "not sure", "I don't know", or a refusal to elaborate. Only answer NO when the participant has not responded to this question at all, or has clearly talked about something else.

Respond with exactly one word: YES or NO.`

const verdictUserPrompt = `Question under review:
"%s"

Transcript:
---
%s
---

Has the participant answered the question under review? Respond YES or NO.`

const stageSystemPrompt = `You review transcripts of a scripted research interview in which a fixed list of questions is asked in order.

Acceptance is lenient. Any reply that addresses a question counts as an answer, including short replies, "none", "no", "not sure", "I don't know", or a refusal to elaborate.

Respond with a single number and nothing else.`

const stageUserPrompt = `Questions, in interview order:
%s
Transcript:
---
%s
---

Counting from the first question and stopping at the first one that has not been answered, how many of these questions has the participant answered? Respond with a single number between 0 and %d.`

const askInstruction = `Briefly acknowledge the participant's last reply in one sentence, then ask exactly this question, word for word: "%s"
Do not revisit earlier topics, do not comment on earlier answers beyond the acknowledgement, and do not ask anything else.`

const pressInstruction = `The participant has already been asked: "%s"
Acknowledge what they said and ask them to say more about their view and the reasons behind it. Do not repeat the question word for word and do not move on to another topic.`

const closingInstruction = `All questions have been answered. Thank the participant for their time and tell them to click the arrow below to proceed with the survey. Do not ask any further questions.`
