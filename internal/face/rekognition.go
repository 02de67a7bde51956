package face

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
)

// RekognitionAnalyzer implements Analyzer on AWS Rekognition.
type RekognitionAnalyzer struct {
	client *rekognition.Client
}

func NewRekognitionAnalyzer(client *rekognition.Client) *RekognitionAnalyzer {
	return &RekognitionAnalyzer{client: client}
}

func (a *RekognitionAnalyzer) DetectFace(ctx context.Context, imageBytes []byte) (Liveness, error) {
	out, err := a.client.DetectFaces(ctx, &rekognition.DetectFacesInput{
		Image:      &types.Image{Bytes: imageBytes},
		Attributes: []types.Attribute{types.AttributeAll},
	})
	if err != nil {
		return Liveness{}, fmt.Errorf("rekognition detect faces: %w", err)
	}

	if len(out.FaceDetails) == 0 {
		return Liveness{}, nil
	}

	detail := out.FaceDetails[0]
	live := Liveness{
		Confidence: float64(aws.ToFloat32(detail.Confidence)),
	}
	if detail.EyesOpen != nil {
		live.EyesOpen = detail.EyesOpen.Value
	}
	return live, nil
}

func (a *RekognitionAnalyzer) CompareFaces(ctx context.Context, sourceBytes, targetBytes []byte, similarityFloor float32) (float64, error) {
	out, err := a.client.CompareFaces(ctx, &rekognition.CompareFacesInput{
		SourceImage:         &types.Image{Bytes: sourceBytes},
		TargetImage:         &types.Image{Bytes: targetBytes},
		SimilarityThreshold: aws.Float32(similarityFloor),
	})
	if err != nil {
		return 0, fmt.Errorf("rekognition compare faces: %w", err)
	}

	if len(out.FaceMatches) == 0 {
		return 0, nil
	}
	return float64(aws.ToFloat32(out.FaceMatches[0].Similarity)), nil
}
