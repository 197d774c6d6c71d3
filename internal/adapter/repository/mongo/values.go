package mongo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/souravMitra02/volunteer-project-server/internal/domain/post"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

/**
 * 締切の保存値。書き込みは BSON の日時で行う。
 * 旧サーバーはリクエスト本文をそのまま保存していたため、
 * 読み込みでは RFC3339 や YYYY-MM-DD の文字列も受け付ける。解釈できない文字列はゼロ値。
 */
type deadlineValue time.Time

func (d deadlineValue) Time() time.Time {
	return time.Time(d).UTC()
}

func (d deadlineValue) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(d.Time())
}

func (d *deadlineValue) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.DateTime:
		*d = deadlineValue(raw.Time().UTC())
	case bsontype.String:
		parsed, err := post.ParseDeadline(raw.StringValue())
		if err != nil {
			parsed = time.Time{}
		}
		*d = deadlineValue(parsed)
	case bsontype.Null, bsontype.Undefined:
		*d = deadlineValue(time.Time{})
	default:
		return fmt.Errorf("deadline: unsupported bson type %s", t)
	}
	return nil
}

/**
 * 募集人数の保存値。書き込みは整数で行い、読み込みでは文字列や浮動小数も受け付ける。
 * 数値として読めない文字列は 0 とする。
 */
type counterValue int

func (c counterValue) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(int64(c))
}

func (c *counterValue) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.Int32:
		*c = counterValue(raw.Int32())
	case bsontype.Int64:
		*c = counterValue(raw.Int64())
	case bsontype.Double:
		*c = counterValue(int(math.Round(raw.Double())))
	case bsontype.String:
		n, err := strconv.Atoi(strings.TrimSpace(raw.StringValue()))
		if err != nil {
			n = 0
		}
		*c = counterValue(n)
	case bsontype.Null, bsontype.Undefined:
		*c = 0
	default:
		return fmt.Errorf("volunteersNeeded: unsupported bson type %s", t)
	}
	return nil
}

// legacyPostsFilter は文字列のまま保存された締切か募集人数を持つ投稿に一致する。
func legacyPostsFilter() bson.M {
	return bson.M{"$or": bson.A{
		bson.M{post.FieldDeadline: bson.M{"$type": "string"}},
		bson.M{post.FieldVolunteersNeeded: bson.M{"$type": "string"}},
	}}
}

/**
 * 文字列の締切と募集人数を日時と整数へ書き換える更新パイプライン。
 * 変換できない値は元のまま残す。
 */
func legacyPostsPipeline() bson.A {
	convert := func(field string, to bson.M) bson.M {
		ref := "$" + field
		return bson.M{"$cond": bson.A{
			bson.M{"$eq": bson.A{bson.M{"$type": ref}, "string"}},
			to,
			ref,
		}}
	}
	return bson.A{bson.M{"$set": bson.M{
		post.FieldDeadline: convert(post.FieldDeadline, bson.M{"$dateFromString": bson.M{
			"dateString": "$" + post.FieldDeadline,
			"onError":    "$" + post.FieldDeadline,
		}}),
		post.FieldVolunteersNeeded: convert(post.FieldVolunteersNeeded, bson.M{"$convert": bson.M{
			"input":   bson.M{"$trim": bson.M{"input": "$" + post.FieldVolunteersNeeded}},
			"to":      "int",
			"onError": "$" + post.FieldVolunteersNeeded,
		}}),
	}}}
}
