// Package field describes the columns of a model beyond their names:
// the extra type information used by the query exposure engine
// (comparison filters, file handling, sanitizing) and the validation
// rules applied to incoming payloads.
//
//	func (Post) FieldExtraInfo() field.Infos {
//	    return field.Infos{
//	        "published_at": field.Time(),
//	        "cover":        field.File().OnDisk("public"),
//	        "body":         field.Text().Sanitized(),
//	    }
//	}
//
//	func (Post) Rules() field.Rules {
//	    return field.Rules{
//	        "title":           "sometimes|required|string|max:255",
//	        "published_at":    "nullable|date",
//	        "comments.*.body": "required|string",
//	    }
//	}
//
// Rules use a pipe separated list of constraints. Keys may address nested
// payloads, where "*" stands for every element of a list (or the single
// object of a to-one relation).
package field
