// Package annotate asks a vision model to describe a garment photo as a
// structured JSON object (type, material, colour, fit and style, design
// features, condition, brand, season, use case and size).
//
// The description is advisory. Callers store it verbatim and must keep
// working when the service is not configured or fails.
package annotate
