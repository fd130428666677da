package domain

import (
	"encoding/json"
	"fmt"
)

type IdentityKind string

const (
	IdentityMaster       IdentityKind = "master"
	IdentityClient       IdentityKind = "client"
	IdentityProfessional IdentityKind = "professional"
)

// Professional is the identity payload carried by PTIN/ERO sessions.
type Professional struct {
	Role         string `json:"role"`
	PTIN         string `json:"ptin,omitempty"`
	ERONumber    string `json:"ero_number,omitempty"`
	BusinessName string `json:"business_name,omitempty"`
}

// Identity is the tagged identity bound to a session: the master identity,
// a client account id, or a professional payload.
type Identity struct {
	Kind         IdentityKind  `json:"kind"`
	ClientID     string        `json:"client_id,omitempty"`
	Professional *Professional `json:"professional,omitempty"`
}

func MasterIdentity() Identity {
	return Identity{Kind: IdentityMaster}
}

func ClientIdentity(id string) Identity {
	return Identity{Kind: IdentityClient, ClientID: id}
}

func ProfessionalIdentity(p Professional) Identity {
	return Identity{Kind: IdentityProfessional, Professional: &p}
}

func (i Identity) IsMaster() bool       { return i.Kind == IdentityMaster }
func (i Identity) IsClient() bool       { return i.Kind == IdentityClient }
func (i Identity) IsProfessional() bool { return i.Kind == IdentityProfessional }

// MarshalJSON keeps the persisted user_id shape of the session file: the
// literal string "master", a bare client id, or a professional object.
func (i Identity) MarshalJSON() ([]byte, error) {
	switch i.Kind {
	case IdentityMaster:
		return json.Marshal("master")
	case IdentityClient:
		return json.Marshal(i.ClientID)
	case IdentityProfessional:
		return json.Marshal(i.Professional)
	default:
		return nil, fmt.Errorf("unknown identity kind %q", i.Kind)
	}
}

func (i *Identity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "master" {
			*i = MasterIdentity()
		} else {
			*i = ClientIdentity(s)
		}
		return nil
	}
	var p Professional
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode identity: %w", err)
	}
	*i = ProfessionalIdentity(p)
	return nil
}
