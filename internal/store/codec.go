// internal/store/codec.go
package store

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/shopspring/decimal"
)

// Item is one DynamoDB row keyed by attribute name.
type Item = map[string]*dynamodb.AttributeValue

// EncodeItem converts normalized record attributes to their DynamoDB
// representation. Decimals and integers become number attributes, string
// slices become lists of strings.
func EncodeItem(attrs map[string]interface{}) (Item, error) {
	item := make(Item, len(attrs))
	for name, value := range attrs {
		encoded, err := encodeValue(value)
		if err != nil {
			return nil, fmt.Errorf("encode attribute %q: %w", name, err)
		}
		item[name] = encoded
	}
	return item, nil
}

func encodeValue(value interface{}) (*dynamodb.AttributeValue, error) {
	switch v := value.(type) {
	case nil:
		return &dynamodb.AttributeValue{NULL: aws.Bool(true)}, nil
	case string:
		return &dynamodb.AttributeValue{S: aws.String(v)}, nil
	case bool:
		return &dynamodb.AttributeValue{BOOL: aws.Bool(v)}, nil
	case int:
		return &dynamodb.AttributeValue{N: aws.String(strconv.Itoa(v))}, nil
	case int64:
		return &dynamodb.AttributeValue{N: aws.String(strconv.FormatInt(v, 10))}, nil
	case float64:
		return &dynamodb.AttributeValue{N: aws.String(strconv.FormatFloat(v, 'f', -1, 64))}, nil
	case json.Number:
		return &dynamodb.AttributeValue{N: aws.String(v.String())}, nil
	case decimal.Decimal:
		return &dynamodb.AttributeValue{N: aws.String(v.String())}, nil
	case []string:
		list := make([]*dynamodb.AttributeValue, 0, len(v))
		for _, s := range v {
			list = append(list, &dynamodb.AttributeValue{S: aws.String(s)})
		}
		return &dynamodb.AttributeValue{L: list}, nil
	case []interface{}:
		list := make([]*dynamodb.AttributeValue, 0, len(v))
		for _, elem := range v {
			encoded, err := encodeValue(elem)
			if err != nil {
				return nil, err
			}
			list = append(list, encoded)
		}
		return &dynamodb.AttributeValue{L: list}, nil
	case map[string]interface{}:
		m := make(map[string]*dynamodb.AttributeValue, len(v))
		for key, elem := range v {
			encoded, err := encodeValue(elem)
			if err != nil {
				return nil, err
			}
			m[key] = encoded
		}
		return &dynamodb.AttributeValue{M: m}, nil
	}
	return nil, fmt.Errorf("unsupported value type %T", value)
}

// DecodeItem converts a DynamoDB row back to record attributes. Numbers
// decode as json.Number so exact decimal values survive the round trip;
// lists of strings decode as []string.
func DecodeItem(item Item) map[string]interface{} {
	attrs := make(map[string]interface{}, len(item))
	for name, value := range item {
		attrs[name] = decodeValue(value)
	}
	return attrs
}

func decodeValue(av *dynamodb.AttributeValue) interface{} {
	switch {
	case av == nil || aws.BoolValue(av.NULL):
		return nil
	case av.S != nil:
		return aws.StringValue(av.S)
	case av.N != nil:
		return json.Number(aws.StringValue(av.N))
	case av.BOOL != nil:
		return aws.BoolValue(av.BOOL)
	case av.SS != nil:
		return aws.StringValueSlice(av.SS)
	case av.L != nil:
		if strs, ok := decodeStringList(av.L); ok {
			return strs
		}
		list := make([]interface{}, 0, len(av.L))
		for _, elem := range av.L {
			list = append(list, decodeValue(elem))
		}
		return list
	case av.M != nil:
		return DecodeItem(av.M)
	}
	return nil
}

func decodeStringList(list []*dynamodb.AttributeValue) ([]string, bool) {
	strs := make([]string, 0, len(list))
	for _, elem := range list {
		if elem == nil || elem.S == nil {
			return nil, false
		}
		strs = append(strs, aws.StringValue(elem.S))
	}
	return strs, true
}
