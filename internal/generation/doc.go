// Package generation turns vocabulary lists into learning cards.
//
// The package defines the boundary between the application core and the
// external AI/LLM services used for content generation. Providers implement
// TextModel (sentences, tagging, translation, phonetics) and Speaker (TTS);
// Gemini is the production implementation in platform/gemini.
//
// Key components:
//
//  1. CardGenerator: implements the Generator interface by assembling a
//     single card from a tagged sentence. Translation failure fails the card;
//     audio and phonetic failures degrade it.
//  2. Ingestor: validates generated cards, degrades their modes to what the
//     content supports and writes new ones to the card store.
//  3. DeckBuilder: draws vocabulary units that still need cards, asks the
//     text model for sentences and assembles cards on a worker pool until
//     every unit has enough cards.
//  4. Check: reports audio references missing from the audio store.
package generation
