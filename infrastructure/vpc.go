package main

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/c-robinson/iplib"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/ec2"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// VpcResources holds all the networking resources
type VpcResources struct {
	Vpc               *ec2.Vpc
	PublicSubnets     []*ec2.Subnet
	PrivateSubnets    []*ec2.Subnet
	InternetGateway   *ec2.InternetGateway
	NatGateway        *ec2.NatGateway
	PublicRouteTable  *ec2.RouteTable
	PrivateRouteTable *ec2.RouteTable
	WebSecurityGroup  *ec2.SecurityGroup
}

// subnetCidrs carves /24 blocks out of the VPC range: the first n are
// public, the next n private.
func subnetCidrs(vpcCidr string, n int) (public, private []string, err error) {
	parts := strings.Split(vpcCidr, "/")
	if len(parts) != 2 {
		return nil, nil, fmt.Errorf("invalid VPC CIDR %q", vpcCidr)
	}
	ip := net.ParseIP(parts[0])
	if ip == nil {
		return nil, nil, fmt.Errorf("invalid VPC CIDR %q", vpcCidr)
	}
	mask, err := strconv.Atoi(parts[1])
	if err != nil || mask > 24 {
		return nil, nil, fmt.Errorf("invalid VPC CIDR %q", vpcCidr)
	}

	blocks, err := iplib.NewNet4(ip, mask).Subnet(24)
	if err != nil {
		return nil, nil, fmt.Errorf("split %s: %w", vpcCidr, err)
	}
	if len(blocks) < 2*n {
		return nil, nil, fmt.Errorf("VPC CIDR %s is too small for %d availability zones", vpcCidr, n)
	}
	for i := 0; i < n; i++ {
		public = append(public, blocks[i].String())
		private = append(private, blocks[n+i].String())
	}
	return public, private, nil
}

// createVpcResources creates the VPC with a public and a private subnet per
// availability zone. Private subnets egress through a single NAT gateway.
func createVpcResources(ctx *pulumi.Context, cfg StackConfig) (*VpcResources, error) {
	available, err := aws.GetAvailabilityZones(ctx, &aws.GetAvailabilityZonesArgs{
		State: pulumi.StringRef("available"),
	}, nil)
	if err != nil {
		return nil, err
	}
	zones := available.Names
	if len(zones) > cfg.MaxAzs {
		zones = zones[:cfg.MaxAzs]
	}
	if len(zones) == 0 {
		return nil, fmt.Errorf("no availability zones available")
	}

	publicCidrs, privateCidrs, err := subnetCidrs(cfg.VpcCidr, len(zones))
	if err != nil {
		return nil, err
	}

	vpc, err := ec2.NewVpc(ctx, "soc2-vpc", &ec2.VpcArgs{
		CidrBlock:          pulumi.String(cfg.VpcCidr),
		EnableDnsSupport:   pulumi.Bool(true),
		EnableDnsHostnames: pulumi.Bool(true),
		Tags: pulumi.StringMap{
			"Name": pulumi.String("soc2-vpc"),
		},
	})
	if err != nil {
		return nil, err
	}

	var publicSubnets, privateSubnets []*ec2.Subnet
	for i, az := range zones {
		publicName := fmt.Sprintf("soc2-public-subnet-%d", i+1)
		publicSubnet, err := ec2.NewSubnet(ctx, publicName, &ec2.SubnetArgs{
			VpcId:               vpc.ID(),
			CidrBlock:           pulumi.String(publicCidrs[i]),
			AvailabilityZone:    pulumi.String(az),
			MapPublicIpOnLaunch: pulumi.Bool(true),
			Tags: pulumi.StringMap{
				"Name": pulumi.String(publicName),
			},
		})
		if err != nil {
			return nil, err
		}
		publicSubnets = append(publicSubnets, publicSubnet)

		privateName := fmt.Sprintf("soc2-private-subnet-%d", i+1)
		privateSubnet, err := ec2.NewSubnet(ctx, privateName, &ec2.SubnetArgs{
			VpcId:            vpc.ID(),
			CidrBlock:        pulumi.String(privateCidrs[i]),
			AvailabilityZone: pulumi.String(az),
			Tags: pulumi.StringMap{
				"Name": pulumi.String(privateName),
			},
		})
		if err != nil {
			return nil, err
		}
		privateSubnets = append(privateSubnets, privateSubnet)
	}

	igw, err := ec2.NewInternetGateway(ctx, "soc2-igw", &ec2.InternetGatewayArgs{
		VpcId: vpc.ID(),
		Tags: pulumi.StringMap{
			"Name": pulumi.String("soc2-igw"),
		},
	})
	if err != nil {
		return nil, err
	}

	natEip, err := ec2.NewEip(ctx, "soc2-nat-eip", &ec2.EipArgs{
		Vpc: pulumi.Bool(true),
		Tags: pulumi.StringMap{
			"Name": pulumi.String("soc2-nat-eip"),
		},
	}, pulumi.DependsOn([]pulumi.Resource{igw}))
	if err != nil {
		return nil, err
	}

	natGateway, err := ec2.NewNatGateway(ctx, "soc2-nat", &ec2.NatGatewayArgs{
		AllocationId: natEip.ID(),
		SubnetId:     publicSubnets[0].ID(),
		Tags: pulumi.StringMap{
			"Name": pulumi.String("soc2-nat"),
		},
	})
	if err != nil {
		return nil, err
	}

	publicRouteTable, err := ec2.NewRouteTable(ctx, "soc2-public-rt", &ec2.RouteTableArgs{
		VpcId: vpc.ID(),
		Routes: ec2.RouteTableRouteArray{
			&ec2.RouteTableRouteArgs{
				CidrBlock: pulumi.String("0.0.0.0/0"),
				GatewayId: igw.ID(),
			},
		},
		Tags: pulumi.StringMap{
			"Name": pulumi.String("soc2-public-rt"),
		},
	})
	if err != nil {
		return nil, err
	}

	privateRouteTable, err := ec2.NewRouteTable(ctx, "soc2-private-rt", &ec2.RouteTableArgs{
		VpcId: vpc.ID(),
		Routes: ec2.RouteTableRouteArray{
			&ec2.RouteTableRouteArgs{
				CidrBlock:    pulumi.String("0.0.0.0/0"),
				NatGatewayId: natGateway.ID(),
			},
		},
		Tags: pulumi.StringMap{
			"Name": pulumi.String("soc2-private-rt"),
		},
	})
	if err != nil {
		return nil, err
	}

	for i, subnet := range publicSubnets {
		_, err = ec2.NewRouteTableAssociation(ctx, fmt.Sprintf("soc2-public-rt-assoc-%d", i+1), &ec2.RouteTableAssociationArgs{
			SubnetId:     subnet.ID(),
			RouteTableId: publicRouteTable.ID(),
		})
		if err != nil {
			return nil, err
		}
	}
	for i, subnet := range privateSubnets {
		_, err = ec2.NewRouteTableAssociation(ctx, fmt.Sprintf("soc2-private-rt-assoc-%d", i+1), &ec2.RouteTableAssociationArgs{
			SubnetId:     subnet.ID(),
			RouteTableId: privateRouteTable.ID(),
		})
		if err != nil {
			return nil, err
		}
	}

	webSecurityGroup, err := ec2.NewSecurityGroup(ctx, "soc2-web-sg", &ec2.SecurityGroupArgs{
		VpcId:       vpc.ID(),
		Description: pulumi.String("Security group for web servers"),
		Ingress: ec2.SecurityGroupIngressArray{
			&ec2.SecurityGroupIngressArgs{
				Protocol:    pulumi.String("tcp"),
				FromPort:    pulumi.Int(80),
				ToPort:      pulumi.Int(80),
				CidrBlocks:  pulumi.StringArray{pulumi.String("0.0.0.0/0")},
				Description: pulumi.String("Allow HTTP traffic"),
			},
			&ec2.SecurityGroupIngressArgs{
				Protocol:    pulumi.String("tcp"),
				FromPort:    pulumi.Int(443),
				ToPort:      pulumi.Int(443),
				CidrBlocks:  pulumi.StringArray{pulumi.String("0.0.0.0/0")},
				Description: pulumi.String("Allow HTTPS traffic"),
			},
		},
		Egress: ec2.SecurityGroupEgressArray{
			&ec2.SecurityGroupEgressArgs{
				Protocol:    pulumi.String("-1"),
				FromPort:    pulumi.Int(0),
				ToPort:      pulumi.Int(0),
				CidrBlocks:  pulumi.StringArray{pulumi.String("0.0.0.0/0")},
				Description: pulumi.String("Allow all outbound traffic"),
			},
		},
		Tags: pulumi.StringMap{
			"Name": pulumi.String("soc2-web-sg"),
		},
	})
	if err != nil {
		return nil, err
	}

	return &VpcResources{
		Vpc:               vpc,
		PublicSubnets:     publicSubnets,
		PrivateSubnets:    privateSubnets,
		InternetGateway:   igw,
		NatGateway:        natGateway,
		PublicRouteTable:  publicRouteTable,
		PrivateRouteTable: privateRouteTable,
		WebSecurityGroup:  webSecurityGroup,
	}, nil
}
