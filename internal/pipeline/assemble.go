package pipeline

import (
	"github.com/stylekeep/wardrobe-pipeline/internal/model"
	"github.com/stylekeep/wardrobe-pipeline/pkg/claude"
)

// extractionPrompt is the fixed instruction block sent ahead of the image
// blocks. It is deterministic system text, never user input. Image position is
// the addressing scheme: the model must reference the i-th image (1-based) as
// image_index = i.
const extractionPrompt = `You are a fashion cataloging assistant. Analyze each of the attached clothing images and extract structured attributes.

Return ONLY a JSON array, no prose and no markdown fencing. Emit exactly one object per image, in the order the images appear, shaped as:

{
  "image_index": <1-based position of the image this object describes>,
  "class": "<broad class, e.g. topwear|bottomwear|footwear|accessory>",
  "type": "<garment type, e.g. shirt|dress|jeans|sneakers>",
  "subtype": "<more specific type if identifiable>",
  "colors": "<dominant colors, comma separated>",
  "pattern": "<solid|striped|floral|checked|printed|...>",
  "fabric": "<cotton|denim|silk|wool|synthetic|...>",
  "texture": "<smooth|ribbed|knit|quilted|...>",
  "neck": "<neckline for upper garments, else empty>",
  "sleeves": "<sleeve style/length for upper garments, else empty>",
  "fit": "<slim|regular|loose|oversized|...>",
  "length": "<garment length, e.g. crop|regular|midi|maxi>",
  "style": "<casual|formal|sporty|bohemian|...>",
  "occasion": "<everyday|work|party|wedding|athletic|...>",
  "season": "<summer|winter|monsoon|all-season|...>",
  "ethnic_category": "<ethnic/traditional category if applicable, else empty>",
  "description": "<one-sentence description of the item>",
  "confidence": <your certainty in this analysis, 0.0 to 1.0>
}

Use null for attributes you cannot determine. If an image does not contain a clothing item, still emit its object with a low confidence.`

// AssembleContent builds the ordered multimodal payload for the model: one
// fixed instruction block followed by one inline image block per acquired
// image, in original order. Pure function, no side effects.
func AssembleContent(images []model.AcquiredImage) []claude.ContentBlock {
	blocks := make([]claude.ContentBlock, 0, len(images)+1)
	blocks = append(blocks, claude.TextBlock(extractionPrompt))
	for _, img := range images {
		blocks = append(blocks, claude.ImageBlock(img.MediaType, img.Data))
	}
	return blocks
}
