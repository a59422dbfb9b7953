package message

// Numeric message ids. Keepalive's id (0x2B3) is fixed by the client;
// every other id here is an internally consistent assignment — nothing
// observes these ids in the wild except this module.
const (
	IDConnect    uint16 = 0x001
	IDConnectAck uint16 = 0x002

	IDEncryptKey2Request  uint16 = 0x010
	IDEncryptKey2Response uint16 = 0x011
	IDKeyAuthRequest      uint16 = 0x012
	IDKeyAuthResponse     uint16 = 0x013
	IDESYMRequest         uint16 = 0x014
	IDESYMResponse        uint16 = 0x015

	IDNotifyUserCount               uint16 = 0x020
	IDChangeChannelType              uint16 = 0x021
	IDDailyQuestResetTime            uint16 = 0x022
	IDAdditionalDungeonInstanceCount uint16 = 0x023
	IDProfilePathRequest             uint16 = 0x024
	IDProfilePathResponse            uint16 = 0x025
	IDChannelOptionSync              uint16 = 0x026
	IDShutdownStatsSet               uint16 = 0x027
	IDRoutePacket                    uint16 = 0x028
	IDSubPasswordCheckRequest        uint16 = 0x029
	IDSubPasswordCheckResponse       uint16 = 0x02A
	IDSetLoginInstance               uint16 = 0x02B

	IDServerState            uint16 = 0x030
	IDSystemMessage          uint16 = 0x031
	IDSystemMessageForwarded uint16 = 0x032

	IDC2SConnect                uint16 = 0x040
	IDS2CConnect                uint16 = 0x041
	IDC2SCheckVersion           uint16 = 0x042
	IDS2CCheckVersion           uint16 = 0x04F
	IDC2SEnvironment            uint16 = 0x043
	IDC2SRequestRsaPubKey       uint16 = 0x044
	IDS2CRsaPubKey              uint16 = 0x045
	IDC2SAuthAccount            uint16 = 0x046
	IDRequestAuthAccount        uint16 = 0x047
	IDResponseAuthAccount       uint16 = 0x048
	IDVerifyLinks               uint16 = 0x049
	IDVerifyLinksResult         uint16 = 0x04A
	IDMultipleLoginDisconnectResponse uint16 = 0x04B
	IDChangeServerState         uint16 = 0x04C
	IDRequestClientVersion      uint16 = 0x04D
	IDClientVersionNotify       uint16 = 0x04E

	IDClientConnect         uint16 = 0x050
	IDClientDisconnect      uint16 = 0x051
	IDPartyInvite           uint16 = 0x052
	IDPartyInviteAck        uint16 = 0x053
	IDPartyInviteResult     uint16 = 0x054
	IDPartyInviteResultAck  uint16 = 0x055
	IDPartyMemberAdd        uint16 = 0x056
	IDPartyStats            uint16 = 0x057
	IDPartyLeave            uint16 = 0x058
	IDPartyLeaveAck         uint16 = 0x059
	IDPartyClear            uint16 = 0x05A

	IDKeepalive uint16 = 0x2B3
)
