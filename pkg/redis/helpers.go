package redis

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Key layout
//
//	book:{id}              cached book JSON
//	cart:{user}            hash of item:{book} -> quantity plus updated_at
//	cart:{user}:order      list of book ids in insertion order
//	idemp:{scope}:{key}    idempotency lock
//	idemp:map:{scope}:{key} resource created under the key

const (
	cartItemPrefix   = "item:"
	cartUpdatedField = "updated_at"
	maxTxRetries     = 10
)

func bookKey(id bson.ObjectID) string {
	return fmt.Sprintf("book:%s", id.Hex())
}

func cartKey(userID bson.ObjectID) string {
	return fmt.Sprintf("cart:%s", userID.Hex())
}

func cartOrderKey(userID bson.ObjectID) string {
	return fmt.Sprintf("cart:%s:order", userID.Hex())
}

func cartItemField(bookID bson.ObjectID) string {
	return cartItemPrefix + bookID.Hex()
}

// parseCartItemField returns the book id of an item:{hex} field
func parseCartItemField(field string) (bson.ObjectID, bool) {
	hex, ok := strings.CutPrefix(field, cartItemPrefix)
	if !ok {
		return bson.NilObjectID, false
	}
	id, err := bson.ObjectIDFromHex(hex)
	if err != nil {
		return bson.NilObjectID, false
	}
	return id, true
}

func idempLockKey(scope, key string) string {
	return "idemp:" + scope + ":" + key
}

func idempMapKey(scope, key string) string {
	return "idemp:map:" + scope + ":" + key
}
