package model

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// ParseGender maps unknown or empty values to GenderOther.
func ParseGender(s string) Gender {
	switch Gender(s) {
	case GenderMale, GenderFemale:
		return Gender(s)
	default:
		return GenderOther
	}
}

// User is the read-only public profile the chat core looks up. Accounts
// are owned elsewhere.
type User struct {
	ID             string `bson:"_id" json:"id"`
	Name           string `bson:"name" json:"name"`
	ProfilePicture string `bson:"profile_picture,omitempty" json:"profilePicture,omitempty"`
	Gender         Gender `bson:"gender" json:"gender"`
}

func (u *User) GetTableName() string {
	return "users"
}
