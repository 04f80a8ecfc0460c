package weaviate

import (
	"context"

	"github.com/weaviate/weaviate/entities/models"
)

const className = "DocumentChunk"

// SchemaClient defines the interface for Weaviate schema operations
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
}

// EnsureSchema checks if the chunk class exists and creates it if not,
// adding any properties missing from an existing class.
func EnsureSchema(ctx context.Context, client SchemaClient) error {
	exists, err := client.ClassExists(ctx, className)
	if err != nil {
		return err
	}

	properties := []*models.Property{
		{
			Name:     "text",
			DataType: []string{"text"},
		},
		{
			Name:     "doc_name",
			DataType: []string{"string"}, // filename (exact match)
		},
		{
			Name:     "page",
			DataType: []string{"int"},
		},
		{
			Name:     "paragraph",
			DataType: []string{"int"},
		},
		{
			Name:     "is_summary",
			DataType: []string{"boolean"},
		},
		{
			Name:     "generation",
			DataType: []string{"string"}, // ingestion run UUID (exact match)
		},
	}

	if !exists {
		class := &models.Class{
			Class:       className,
			Description: "A chunk of an ingested document",
			Vectorizer:  "none",
			Properties:  properties,
		}
		return client.CreateClass(ctx, class)
	}

	class, err := client.GetClass(ctx, className)
	if err != nil {
		return err
	}

	existingProps := make(map[string]bool)
	for _, p := range class.Properties {
		existingProps[p.Name] = true
	}

	for _, p := range properties {
		if !existingProps[p.Name] {
			if err := client.AddProperty(ctx, className, p); err != nil {
				return err
			}
		}
	}

	return nil
}
