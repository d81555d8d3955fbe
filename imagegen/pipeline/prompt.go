// prompt.go - Prompt-Embedding-Aufbereitung
//
// Dieses Modul enthaelt:
// - EncodePrompts: positive/negative Embeddings gleicher Laenge
// - padToLength: Padding durch Wiederholung des letzten Tokens
//
// Es wird nie gekuerzt; Kuerzung wuerde Prompt-Inhalt stillschweigend
// verwerfen.
package pipeline

import (
	"fmt"

	"diffused/imagegen/tensor"
)

// EncodePrompts encodes both prompts independently and pads the shorter
// embedding until both share one sequence length. The embeddings come back
// as [1, L, D].
func EncodePrompts(enc TextEncoder, positive, negative string) (*tensor.Array, *tensor.Array, error) {
	posEmb, err := enc.Encode(positive)
	if err != nil {
		return nil, nil, fmt.Errorf("encode positive prompt: %w", err)
	}
	negEmb, err := enc.Encode(negative)
	if err != nil {
		return nil, nil, fmt.Errorf("encode negative prompt: %w", err)
	}
	return PadToSameLength(posEmb, negEmb)
}

// PadToSameLength pads whichever [B, L, D] embedding is shorter to the
// longer one's sequence length. Content is never truncated.
func PadToSameLength(pos, neg *tensor.Array) (*tensor.Array, *tensor.Array, error) {
	posShape, negShape := pos.Shape(), neg.Shape()
	if len(posShape) != 3 || len(negShape) != 3 {
		return nil, nil, fmt.Errorf("%w: embeddings must be [B, L, D], got %v and %v",
			ErrShapeMismatch, posShape, negShape)
	}
	if posShape[2] != negShape[2] {
		return nil, nil, fmt.Errorf("%w: embedding hidden sizes differ: %d vs %d",
			ErrShapeMismatch, posShape[2], negShape[2])
	}

	maxLen := posShape[1]
	if negShape[1] > maxLen {
		maxLen = negShape[1]
	}
	return padToLength(pos, maxLen), padToLength(neg, maxLen), nil
}

// padToLength extends a [B, L, D] sequence to targetLen by repeating the
// trailing padding token.
func padToLength(x *tensor.Array, targetLen int32) *tensor.Array {
	shape := x.Shape()
	currentLen := shape[1]
	if currentLen >= targetLen {
		return x
	}
	padLen := targetLen - currentLen
	lastToken := tensor.Slice(x, []int32{0, currentLen - 1, 0}, []int32{shape[0], currentLen, shape[2]})
	padding := tensor.Tile(lastToken, []int32{1, padLen, 1})
	return tensor.Concatenate([]*tensor.Array{x, padding}, 1)
}

// replicateToBatch tiles a [1, L, D] embedding to [batch, L, D].
func replicateToBatch(emb *tensor.Array, batch int32) *tensor.Array {
	if emb.Dim(0) == batch {
		return emb
	}
	return tensor.Tile(emb, []int32{batch, 1, 1})
}
