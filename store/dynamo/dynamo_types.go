package dynamo

import (
	"github.com/nitish987/chatdrop/models"
)

type dynamoAccount struct {
	PK                    string `dynamodbav:"PK"`
	SK                    string `dynamodbav:"SK"`
	Uid                   string `dynamodbav:"Uid"`
	Email                 string `dynamodbav:"Email"`
	Username              string `dynamodbav:"Username"`
	FirstName             string `dynamodbav:"FirstName"`
	LastName              string `dynamodbav:"LastName"`
	Gender                string `dynamodbav:"Gender"`
	DateOfBirth           string `dynamodbav:"DateOfBirth"`
	PasswordHash          string `dynamodbav:"PasswordHash"`
	EncKey                string `dynamodbav:"EncKey"`
	PushToken             string `dynamodbav:"PushToken"`
	IsSigned              bool   `dynamodbav:"IsSigned"`
	IsActive              bool   `dynamodbav:"IsActive"`
	IsAdmin               bool   `dynamodbav:"IsAdmin"`
	Created               int64  `dynamodbav:"Created"`
	IsProfilePrivate      bool   `dynamodbav:"IsProfilePrivate"`
	DefaultPostVisibility string `dynamodbav:"DefaultPostVisibility"`
	DefaultReelVisibility string `dynamodbav:"DefaultReelVisibility"`
}

func accountToDynamo(a models.Account) dynamoAccount {
	return dynamoAccount{
		PK:                    accountPK(a.Uid),
		SK:                    "PROFILE",
		Uid:                   a.Uid,
		Email:                 a.Email,
		Username:              a.Username,
		FirstName:             a.FirstName,
		LastName:              a.LastName,
		Gender:                a.Gender,
		DateOfBirth:           a.DateOfBirth,
		PasswordHash:          a.PasswordHash,
		EncKey:                a.EncKey,
		PushToken:             a.PushToken,
		IsSigned:              a.IsSigned,
		IsActive:              a.IsActive,
		IsAdmin:               a.IsAdmin,
		Created:               a.Created,
		IsProfilePrivate:      a.Settings.IsProfilePrivate,
		DefaultPostVisibility: a.Settings.DefaultPostVisibility,
		DefaultReelVisibility: a.Settings.DefaultReelVisibility,
	}
}

func accountFromDynamo(da dynamoAccount) models.Account {
	return models.Account{
		Uid:          da.Uid,
		Email:        da.Email,
		Username:     da.Username,
		FirstName:    da.FirstName,
		LastName:     da.LastName,
		Gender:       da.Gender,
		DateOfBirth:  da.DateOfBirth,
		PasswordHash: da.PasswordHash,
		EncKey:       da.EncKey,
		PushToken:    da.PushToken,
		IsSigned:     da.IsSigned,
		IsActive:     da.IsActive,
		IsAdmin:      da.IsAdmin,
		Created:      da.Created,
		Settings: models.AccountSettings{
			IsProfilePrivate:      da.IsProfilePrivate,
			DefaultPostVisibility: da.DefaultPostVisibility,
			DefaultReelVisibility: da.DefaultReelVisibility,
		},
	}
}

// dynamoEmailRef doubles as the email uniqueness guard and the
// lookup-by-email index entry.
type dynamoEmailRef struct {
	PK  string `dynamodbav:"PK"`
	SK  string `dynamodbav:"SK"`
	Uid string `dynamodbav:"Uid"`
}

// dynamoUsernameRef mirrors dynamoEmailRef for handle lookups. Username
// uniqueness is advisory, so refs are replaced, never conditionally put.
type dynamoUsernameRef struct {
	PK  string `dynamodbav:"PK"`
	SK  string `dynamodbav:"SK"`
	Uid string `dynamodbav:"Uid"`
}

type dynamoPreKey struct {
	Id  int    `dynamodbav:"Id"`
	Key string `dynamodbav:"Key"`
}

type dynamoBundle struct {
	PK             string         `dynamodbav:"PK"`
	SK             string         `dynamodbav:"SK"`
	RegId          int            `dynamodbav:"RegId"`
	DeviceId       int            `dynamodbav:"DeviceId"`
	PreKeys        []dynamoPreKey `dynamodbav:"PreKeys"`
	SignedPreKeyId int            `dynamodbav:"SignedPreKeyId"`
	SignedPreKey   string         `dynamodbav:"SignedPreKey"`
	SignedPreKeySig string        `dynamodbav:"SignedPreKeySig"`
	IdentityKey    string         `dynamodbav:"IdentityKey"`
	Version        int64          `dynamodbav:"Version"`
}

func bundleToDynamo(b models.PreKeyBundle) dynamoBundle {
	prekeys := make([]dynamoPreKey, len(b.PreKeys))
	for i, pk := range b.PreKeys {
		prekeys[i] = dynamoPreKey{Id: pk.Id, Key: pk.Key}
	}
	return dynamoBundle{
		PK:              accountPK(b.AccountUid),
		SK:              "BUNDLE",
		RegId:           b.RegId,
		DeviceId:        b.DeviceId,
		PreKeys:         prekeys,
		SignedPreKeyId:  b.SignedPreKey.Id,
		SignedPreKey:    b.SignedPreKey.Key,
		SignedPreKeySig: b.SignedPreKey.Sign,
		IdentityKey:     b.IdentityKey,
		Version:         b.Version,
	}
}

type dynamoSession struct {
	PK          string `dynamodbav:"PK"`
	SK          string `dynamodbav:"SK"`
	AccountUid  string `dynamodbav:"AccountUid"`
	Token       string `dynamodbav:"Token"`
	Device      string `dynamodbav:"Device"`
	OS          string `dynamodbav:"OS"`
	Browser     string `dynamodbav:"Browser"`
	Created     int64  `dynamodbav:"Created"`
	ActiveUntil int64  `dynamodbav:"ActiveUntil"`
}

func sessionToDynamo(s models.DeviceSession) dynamoSession {
	return dynamoSession{
		PK:          sessionPK(s.AccountUid),
		SK:          s.Token,
		AccountUid:  s.AccountUid,
		Token:       s.Token,
		Device:      s.Device,
		OS:          s.OS,
		Browser:     s.Browser,
		Created:     s.Created,
		ActiveUntil: s.ActiveUntil,
	}
}

func sessionFromDynamo(ds dynamoSession) models.DeviceSession {
	return models.DeviceSession{
		AccountUid:  ds.AccountUid,
		Token:       ds.Token,
		Device:      ds.Device,
		OS:          ds.OS,
		Browser:     ds.Browser,
		Created:     ds.Created,
		ActiveUntil: ds.ActiveUntil,
	}
}

func accountPK(uid string) string     { return "ACCOUNT#" + uid }
func emailPK(email string) string     { return "EMAIL#" + email }
func usernamePK(username string) string { return "USERNAME#" + username }
func sessionPK(uid string) string     { return "SESSION#" + uid }
