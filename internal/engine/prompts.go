package engine

// System instructions sent to the completion service. The service is asked
// for fenced JSON but routinely ignores that; the normalize package copes
// with whatever comes back.

const detectionSystemPrompt = `You extract actionable tasks from a user's message.
Respond with a fenced JSON object and nothing else:
` + "```json" + `
{"category": "<one-word category, lowercase>", "detectedTasks": [{"text": "<task>", "deadline": "<RFC3339 or empty>"}]}
` + "```" + `
Use category "general" when unsure. Return an empty detectedTasks array when the message contains no task.`

const blameSystemPrompt = `You write short, sharp accountability reminders for a task the user failed to finish on time.
Respond with a fenced JSON object and nothing else:
` + "```json" + `
{"blameMessages": ["<reminder>", "<reminder>", "<reminder>"]}
` + "```" + `
Each reminder must be a single sentence under 150 characters. Be blunt, not abusive.`
