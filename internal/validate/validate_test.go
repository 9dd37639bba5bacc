package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/pgedit/internal/changeset"
	"github.com/koustreak/pgedit/internal/schema"
	"github.com/koustreak/pgedit/internal/schema/schematest"
)

func vals(kv ...any) *changeset.Values {
	v := changeset.NewValues()
	for i := 0; i+1 < len(kv); i += 2 {
		v.Set(kv[i].(string), kv[i+1])
	}
	return v
}

func TestValidate_RejectsUnknownEnumLabel(t *testing.T) {
	md := &schema.TableMetadata{
		Schema: "public",
		Table:  "accounts",
		Columns: []schema.ColumnDefinition{
			{Name: "id", Type: "integer"},
			{Name: "status", Type: "account_status", EnumValues: []string{"active", "archived"}},
		},
		PrimaryKey: schema.PrimaryKeyInfo{Columns: []string{"id"}},
	}

	problems := Validate(md, changeset.ChangeSet{
		&changeset.Update{Data: vals("status", "pending"), Where: vals("id", 1)},
	})
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "status")
	assert.Contains(t, problems[0], `"pending"`)
	assert.Contains(t, problems[0], "active, archived")
}

func TestValidate_NullAcceptedOnNotNullColumn(t *testing.T) {
	md := &schema.TableMetadata{
		Schema:     "public",
		Table:      "t",
		Columns:    []schema.ColumnDefinition{{Name: "col", Type: "integer", Nullable: false}},
		PrimaryKey: schema.PrimaryKeyInfo{Columns: []string{"col"}},
	}
	assert.Empty(t, Validate(md, changeset.ChangeSet{&changeset.Insert{Data: vals("col", nil)}}))
}

func TestValidate_UsersScenarioPasses(t *testing.T) {
	problems := Validate(schematest.Users(), changeset.ChangeSet{
		&changeset.Update{Data: vals("role", "admin"), Where: vals("id", int64(5))},
	})
	assert.Empty(t, problems)
}

func TestValidate_PrimaryKeyTargeting(t *testing.T) {
	users := schematest.Users()

	problems := Validate(users, changeset.ChangeSet{
		&changeset.Delete{Where: vals("name", "Jo")},
		&changeset.Update{Data: vals("name", "x"), Where: vals("id", 1, "name", "Jo")},
		&changeset.Delete{Where: vals("id", 1)},
	})
	require.Len(t, problems, 2)
	assert.Contains(t, problems[0], "change 0")
	assert.Contains(t, problems[1], "change 1")

	noPK := &schema.TableMetadata{Schema: "public", Table: "log", Columns: []schema.ColumnDefinition{{Name: "msg", Type: "text"}}}
	problems = Validate(noPK, changeset.ChangeSet{
		&changeset.Insert{Data: vals("msg", "ok")},
		&changeset.Delete{Where: vals("msg", "ok")},
	})
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "no primary key")
}

func TestValidate_UnknownColumnsSkipped(t *testing.T) {
	assert.Empty(t, Validate(schematest.Users(), changeset.ChangeSet{
		&changeset.Insert{Data: vals("not_a_column", []int{1})},
	}))
}

func TestCheckValue(t *testing.T) {
	enumArray := &schema.ColumnDefinition{Name: "roles", Type: "user_role[]", ElemOID: 1, EnumValues: []string{"admin", "member"}}

	tests := []struct {
		name  string
		col   *schema.ColumnDefinition
		value any
		ok    bool
	}{
		{"int native", &schema.ColumnDefinition{Type: "integer"}, int64(-4), true},
		{"int string", &schema.ColumnDefinition{Type: "bigint"}, "-42", true},
		{"int integral float", &schema.ColumnDefinition{Type: "int4"}, float64(3), true},
		{"int fractional float", &schema.ColumnDefinition{Type: "integer"}, 3.5, false},
		{"int word", &schema.ColumnDefinition{Type: "smallint"}, "ten", false},
		{"int decimal string", &schema.ColumnDefinition{Type: "integer"}, "1.0", false},

		{"numeric string", &schema.ColumnDefinition{Type: "numeric(10,2)"}, "12.50", true},
		{"numeric exponent", &schema.ColumnDefinition{Type: "double precision"}, "1e3", true},
		{"numeric float", &schema.ColumnDefinition{Type: "real"}, 0.25, true},
		{"numeric garbage", &schema.ColumnDefinition{Type: "numeric"}, "12,50", false},
		{"numeric bool", &schema.ColumnDefinition{Type: "numeric"}, true, false},

		{"bool native", &schema.ColumnDefinition{Type: "boolean"}, false, true},
		{"bool TRUE", &schema.ColumnDefinition{Type: "boolean"}, "TRUE", true},
		{"bool 0 string", &schema.ColumnDefinition{Type: "boolean"}, "0", true},
		{"bool 1 number", &schema.ColumnDefinition{Type: "bool"}, int64(1), true},
		{"bool yes", &schema.ColumnDefinition{Type: "boolean"}, "yes", false},
		{"bool 2", &schema.ColumnDefinition{Type: "boolean"}, int64(2), false},

		{"uuid lower", &schema.ColumnDefinition{Type: "uuid"}, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", true},
		{"uuid upper", &schema.ColumnDefinition{Type: "uuid"}, "6BA7B810-9DAD-11D1-80B4-00C04FD430C8", true},
		{"uuid braces", &schema.ColumnDefinition{Type: "uuid"}, "{6ba7b810-9dad-11d1-80b4-00c04fd430c8}", false},
		{"uuid short", &schema.ColumnDefinition{Type: "uuid"}, "6ba7b810", false},

		{"date", &schema.ColumnDefinition{Type: "date"}, "2024-02-29", true},
		{"timestamp", &schema.ColumnDefinition{Type: "timestamp with time zone"}, "2024-02-29T10:00:00Z", true},
		{"implausible date prefix", &schema.ColumnDefinition{Type: "date"}, "9999-99-99", true},
		{"date with space", &schema.ColumnDefinition{Type: "timestamp"}, "2024-02-29 10:00", false},
		{"date object", &schema.ColumnDefinition{Type: "timestamptz"}, time.Now(), true},
		{"date words", &schema.ColumnDefinition{Type: "date"}, "yesterday", false},

		{"json object", &schema.ColumnDefinition{Type: "jsonb"}, map[string]any{"a": 1}, true},
		{"json anything", &schema.ColumnDefinition{Type: "json"}, "not even json", true},

		{"enum array ok", enumArray, []any{"admin", nil, "member"}, true},
		{"enum array bad element", enumArray, []any{"admin", "owner"}, false},
		{"enum array not array", enumArray, "admin", false},
		{"text array", &schema.ColumnDefinition{Type: "text[]"}, []string{"a", "b"}, true},
		{"text array scalar", &schema.ColumnDefinition{Type: "text[]"}, "{a,b}", false},

		{"enum label case sensitive", &schema.ColumnDefinition{Type: "mood", EnumValues: []string{"happy"}}, "Happy", false},
		{"text anything", &schema.ColumnDefinition{Type: "text"}, int64(5), true},
		{"null anywhere", &schema.ColumnDefinition{Type: "uuid"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := CheckValue(tt.col, tt.value)
			if tt.ok {
				assert.Empty(t, msg)
			} else {
				assert.NotEmpty(t, msg)
			}
		})
	}
}
