package model

import "testing"

func TestValidateMembersSingle(t *testing.T) {
	r := &Room{RoomID: "r1", RoomType: RoomTypeSingle, Members: []RoomMember{
		{UserID: "u1"}, {UserID: "u2"},
	}}
	if err := r.ValidateMembers(); err != nil {
		t.Fatalf("two-member single room must pass: %v", err)
	}

	r.Members = append(r.Members, RoomMember{UserID: "u3"})
	if err := r.ValidateMembers(); err == nil {
		t.Fatalf("three-member single room must be rejected")
	}
}

func TestValidateMembersGroup(t *testing.T) {
	r := &Room{RoomID: "r2", RoomType: RoomTypeGroup, Members: []RoomMember{{UserID: "u1"}}}
	if err := r.ValidateMembers(); err == nil {
		t.Fatalf("one-member group must be rejected")
	}
	r.Members = append(r.Members, RoomMember{UserID: "u2"})
	if err := r.ValidateMembers(); err != nil {
		t.Fatalf("two-member group must pass: %v", err)
	}
}

func TestHasMemberAndIDs(t *testing.T) {
	r := &Room{Members: []RoomMember{{UserID: "a"}, {UserID: "b"}}}
	if !r.HasMember("a") || r.HasMember("c") {
		t.Fatalf("HasMember wrong")
	}
	ids := r.MemberIDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("MemberIDs wrong: %v", ids)
	}
}

func TestMessageHasBody(t *testing.T) {
	m := &Message{}
	if m.HasBody() {
		t.Fatalf("empty message must not have body")
	}
	m.Text = "hi"
	if !m.HasBody() {
		t.Fatalf("text message must have body")
	}
	m = &Message{Location: &LocationElem{Latitude: 1, Longitude: 2}}
	if !m.HasBody() {
		t.Fatalf("location message must have body")
	}
	m = &Message{Attachment: &AttachmentElem{URL: "https://x/y.png"}}
	if !m.HasBody() {
		t.Fatalf("attachment message must have body")
	}
}

func TestPasswordHash(t *testing.T) {
	u := &User{PasswordHash: HashPassword("secret")}
	if !u.CheckPassword("secret") {
		t.Fatalf("correct password rejected")
	}
	if u.CheckPassword("wrong") {
		t.Fatalf("wrong password accepted")
	}
}
