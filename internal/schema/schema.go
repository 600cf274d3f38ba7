// internal/schema/schema.go
package schema

import (
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/sirupsen/logrus"

	"github.com/storesight/catalog-backend/internal/config"
)

const retryAttempts = 10

var retryDelay = 3 * time.Second

// Migration is one numbered schema change. Migrations run in order and must
// tolerate being re-run against an environment that already has them applied.
type Migration struct {
	ID   int
	Name string
	Run  func(m *Migrator) error
}

// Migrator applies the table migrations of one environment.
type Migrator struct {
	client      dynamodbiface.DynamoDBAPI
	tablePrefix string
	log         *logrus.Entry
}

func NewMigrator(client dynamodbiface.DynamoDBAPI, cfg *config.Config) *Migrator {
	return &Migrator{
		client:      client,
		tablePrefix: cfg.TablePrefix(),
		log:         logrus.WithField("component", "schema"),
	}
}

func (m *Migrator) tableName(name string) string {
	return m.tablePrefix + "_" + name
}

// Migrations, oldest first. 0002 assigned product UUIDs to pre-existing rows
// and had no schema effect.
func migrations() []Migration {
	return []Migration{
		{ID: 1, Name: "create_product_tables", Run: (*Migrator).createProductTables},
		{ID: 3, Name: "replace_product_tag_meta_index", Run: (*Migrator).replaceProductTagMetaIndex},
		{ID: 4, Name: "delete_visual_features_table", Run: (*Migrator).deleteVisualFeaturesTable},
	}
}

// Provision applies all migrations. Safe to run at every startup: steps that
// were already applied are skipped.
func (m *Migrator) Provision() error {
	for _, migration := range migrations() {
		log := m.log.WithFields(logrus.Fields{
			"migration": migration.ID,
			"name":      migration.Name,
		})
		if err := migration.Run(m); err != nil {
			if alreadyApplied(err) {
				log.Debug("Migration already applied")
				continue
			}
			log.WithError(err).Error("Migration failed")
			return err
		}
		log.Info("Migration applied")
	}
	return nil
}

func (m *Migrator) createProductTables() error {
	_, err := m.client.CreateTable(&dynamodb.CreateTableInput{
		TableName: aws.String(m.tableName("product")),
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			// Canonical product URL, the unique record reference.
			{AttributeName: aws.String("store_product_url"), AttributeType: aws.String("S")},
			// Assigned at creation, merged across stores by the mega-product
			// grouping pipeline.
			{AttributeName: aws.String("product_uuid"), AttributeType: aws.String("S")},
			{AttributeName: aws.String("brand_domain"), AttributeType: aws.String("S")},
			{AttributeName: aws.String("store_domain"), AttributeType: aws.String("S")},
			{AttributeName: aws.String("vendor_name"), AttributeType: aws.String("S")},
			// 1 when available, 0 otherwise. Numeric so it can serve as an
			// index range key.
			{AttributeName: aws.String("is_available"), AttributeType: aws.String("N")},
		},
		KeySchema: []*dynamodb.KeySchemaElement{
			{AttributeName: aws.String("store_product_url"), KeyType: aws.String("HASH")},
		},
		GlobalSecondaryIndexes: []*dynamodb.GlobalSecondaryIndex{
			globalIndex("product_uuid_idx", "product_uuid", "is_available", dynamodb.ProjectionTypeAll),
			globalIndex("brand_domain_idx", "brand_domain", "is_available", dynamodb.ProjectionTypeAll),
			globalIndex("store_domain_idx", "store_domain", "is_available", dynamodb.ProjectionTypeAll),
			globalIndex("store_vendor_idx", "store_domain", "vendor_name", dynamodb.ProjectionTypeKeysOnly),
		},
		BillingMode: aws.String(dynamodb.BillingModePayPerRequest),
	})
	if err != nil {
		return err
	}

	_, err = m.client.CreateTable(&dynamodb.CreateTableInput{
		TableName: aws.String(m.tableName("product_visual_features")),
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{AttributeName: aws.String("store_product_url"), AttributeType: aws.String("S")},
			{AttributeName: aws.String("image_url"), AttributeType: aws.String("S")},
		},
		KeySchema: []*dynamodb.KeySchemaElement{
			{AttributeName: aws.String("store_product_url"), KeyType: aws.String("HASH")},
			{AttributeName: aws.String("image_url"), KeyType: aws.String("RANGE")},
		},
		BillingMode: aws.String(dynamodb.BillingModePayPerRequest),
	})
	if err != nil {
		return err
	}

	// Tag kind flags are sparse numeric attributes so each kind's index only
	// holds rows carrying that tag.
	_, err = m.client.CreateTable(&dynamodb.CreateTableInput{
		TableName: aws.String(m.tableName("product_tag")),
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{AttributeName: aws.String("store_product_url"), AttributeType: aws.String("S")},
			{AttributeName: aws.String("tag"), AttributeType: aws.String("S")},
			{AttributeName: aws.String("image_not_indexed"), AttributeType: aws.String("N")},
			{AttributeName: aws.String("update_product_meta"), AttributeType: aws.String("N")},
		},
		KeySchema: []*dynamodb.KeySchemaElement{
			{AttributeName: aws.String("store_product_url"), KeyType: aws.String("HASH")},
			{AttributeName: aws.String("tag"), KeyType: aws.String("RANGE")},
		},
		GlobalSecondaryIndexes: []*dynamodb.GlobalSecondaryIndex{
			globalIndex("image_not_indexed_idx", "store_product_url", "image_not_indexed", dynamodb.ProjectionTypeKeysOnly),
			globalIndex("update_product_meta_idx", "store_product_url", "update_product_meta", dynamodb.ProjectionTypeKeysOnly),
		},
		BillingMode: aws.String(dynamodb.BillingModePayPerRequest),
	})
	return err
}

// replaceProductTagMetaIndex widens update_product_meta_idx from KEYS_ONLY to
// a full projection so tag consumers do not need a second read per row.
func (m *Migrator) replaceProductTagMetaIndex() error {
	tagTable := m.tableName("product_tag")

	_, err := m.client.UpdateTable(&dynamodb.UpdateTableInput{
		TableName: aws.String(tagTable),
		GlobalSecondaryIndexUpdates: []*dynamodb.GlobalSecondaryIndexUpdate{
			{Delete: &dynamodb.DeleteGlobalSecondaryIndexAction{
				IndexName: aws.String("update_product_meta_idx"),
			}},
		},
	})
	if err != nil {
		return err
	}

	// The delete is asynchronous; the recreate is rejected until it settles.
	return m.withRetry(func() error {
		_, err := m.client.UpdateTable(&dynamodb.UpdateTableInput{
			TableName: aws.String(tagTable),
			AttributeDefinitions: []*dynamodb.AttributeDefinition{
				{AttributeName: aws.String("store_product_url"), AttributeType: aws.String("S")},
				{AttributeName: aws.String("update_product_meta"), AttributeType: aws.String("N")},
			},
			GlobalSecondaryIndexUpdates: []*dynamodb.GlobalSecondaryIndexUpdate{
				{Create: &dynamodb.CreateGlobalSecondaryIndexAction{
					IndexName: aws.String("update_product_meta_idx"),
					KeySchema: []*dynamodb.KeySchemaElement{
						{AttributeName: aws.String("store_product_url"), KeyType: aws.String("HASH")},
						{AttributeName: aws.String("update_product_meta"), KeyType: aws.String("RANGE")},
					},
					Projection: &dynamodb.Projection{
						ProjectionType: aws.String(dynamodb.ProjectionTypeAll),
					},
				}},
			},
		})
		return err
	})
}

// deleteVisualFeaturesTable drops the visual-features table; image features
// moved to the dedicated indexing service's own storage.
func (m *Migrator) deleteVisualFeaturesTable() error {
	_, err := m.client.DeleteTable(&dynamodb.DeleteTableInput{
		TableName: aws.String(m.tableName("product_visual_features")),
	})
	return err
}

func globalIndex(name, hashKey, rangeKey, projection string) *dynamodb.GlobalSecondaryIndex {
	return &dynamodb.GlobalSecondaryIndex{
		IndexName: aws.String(name),
		KeySchema: []*dynamodb.KeySchemaElement{
			{AttributeName: aws.String(hashKey), KeyType: aws.String("HASH")},
			{AttributeName: aws.String(rangeKey), KeyType: aws.String("RANGE")},
		},
		Projection: &dynamodb.Projection{ProjectionType: aws.String(projection)},
	}
}

// withRetry re-runs f while table or index resources are still updating.
func (m *Migrator) withRetry(f func() error) error {
	var err error
	for i := 0; i < retryAttempts; i++ {
		err = f()
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		time.Sleep(retryDelay)
	}
	return err
}

func isRetryable(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case dynamodb.ErrCodeLimitExceededException, dynamodb.ErrCodeResourceInUseException:
			return true
		}
	}
	return false
}

func alreadyApplied(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case dynamodb.ErrCodeResourceInUseException, dynamodb.ErrCodeResourceNotFoundException:
			return true
		}
	}
	return false
}
