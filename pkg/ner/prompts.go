package ner

// RecognizePrompt is the template for model-backed entity recognition. The
// single %s slot takes the chunk text. The category names match the
// MapLabel allow-list; anything else the model invents is discarded after
// parsing.
const RecognizePrompt = `
# Task Context
You are a named-entity recognition assistant. You will be given a passage of text and must list every named entity that appears in it.

# Background Data
%s

# Detailed Task Description & Rules
- Extract every named entity from the passage exactly as it appears in the text.
- Assign each entity exactly one of these categories: PERSON, ORGANIZATION, LOCATION, CONCEPT, PRODUCT, EVENT.
- Do NOT extract dates, times, quantities, percentages or monetary amounts.
- Do NOT extract generic noun phrases ("the team", "a meeting") or sentence fragments.
- Keep the surface form verbatim, including titles and legal suffixes; do not rewrite or translate names.
- An entity that appears multiple times should be listed once per distinct surface form.

# Output Formatting
Return a JSON object with this structure:
{
  "entities": [
    {
      "text": "<surface form exactly as written>",
      "type": "<PERSON|ORGANIZATION|LOCATION|CONCEPT|PRODUCT|EVENT>"
    }
  ]
}
`
