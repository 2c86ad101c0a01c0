package annotate

// Prompt is the instruction sent alongside every photo.
const Prompt = `You are a fashion designer cataloguing a wardrobe. Describe the clothing item in the photo.

Return a JSON object with exactly these keys:
{
  "type": "jacket",
  "material": "denim",
  "color": {"primary": "blue", "secondary": ["white stitching"]},
  "fit_and_style": {"fit": "regular", "style": "casual"},
  "design_features": ["button closure", "chest pockets"],
  "condition": "lightly worn",
  "brand": "unknown",
  "season": "spring",
  "use_case": ["casual outing"],
  "size": "medium"
}

Rules:
- Use lowercase values.
- Use "unknown" when a detail cannot be seen.
- Describe an outfit photo by its most prominent garment and list the others under design_features.

Return ONLY the JSON, no other text.`
